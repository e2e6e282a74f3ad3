// Package transcode 把单个 RGBA PNG/APNG 文件就地转为索引色 PNG/APNG。
package transcode

import (
	"bytes"
	"fmt"
	"os"

	"github.com/John-Robertt/pngslim/internal/codec"
	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/John-Robertt/pngslim/internal/infra/fsx"
	"github.com/John-Robertt/pngslim/internal/quant"
)

// Params 是一次转码的参数；按值拷贝进每个 job。
type Params struct {
	Speed          int
	Quality        domain.QualityBounds
	DitheringLevel float64
	Compression    domain.Compression
}

// DefaultParams 返回内置默认参数，与未指定任何 CLI/配置项时一致。
func DefaultParams() Params {
	return Params{
		Speed:          domain.DefaultSpeed,
		DitheringLevel: domain.DefaultDitheringLevel,
		Compression:    domain.CompressionDefault,
	}
}

// ProgressFunc 接收量化阶段 [0,100] 的进度；写入成功后收到 domain.ProgressCeiling。
type ProgressFunc func(value float64)

// Result 描述一次成功（或部分完成）的转码。FinalSize 只在写回成功后填充；
// Colors/Quality 来自共享调色板的量化结果。
type Result struct {
	OriginalSize int64
	FinalSize    int64
	Frames       int
	Animated     bool
	Colors       int
	Quality      int
}

// Func 是 Transcode 的函数签名，调度器通过它注入实现。
type Func func(path string, p Params, progress ProgressFunc) (Result, error)

var _ Func = Transcode

// Transcode 读取 path，量化后原子替换原文件。
//
// 约束：
// - 非 RGBA 输入返回 *UnsupportedColorModeError，文件不变
// - 其他失败返回 *StageError，文件不变
// - 动画文件所有帧共享同一个调色板（先累积全部帧的直方图，只量化一次）
func Transcode(path string, p Params, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(float64) {}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, stageErr(StageRead, err)
	}
	res := Result{OriginalSize: int64(len(data))}

	h, err := codec.ParseHeader(data)
	if err != nil {
		return res, stageErr(StageDecode, err)
	}
	if h.ColorMode != codec.ColorRGBA {
		return res, &UnsupportedColorModeError{Mode: h.ColorMode}
	}

	anim, err := codec.Decode(data)
	if err != nil {
		return res, stageErr(StageDecode, err)
	}
	res.Animated = anim.Animated
	res.Frames = len(anim.Frames)

	qr, err := quantizeFrames(anim, p, progress)
	if err != nil {
		return res, stageErr(StageQuantize, err)
	}
	res.Colors = len(qr.Palette())
	res.Quality = qr.Quality()

	var buf bytes.Buffer
	if anim.Animated {
		err = codec.EncodeAPNG(&buf, anim, p.Compression)
	} else {
		err = codec.EncodePNG(&buf, anim.Frames[0].Indexed, p.Compression)
	}
	if err != nil {
		return res, stageErr(StageEncode, err)
	}

	if err := fsx.ReplaceFile(path, buf.Bytes()); err != nil {
		return res, stageErr(StageWrite, err)
	}
	progress(domain.ProgressCeiling)
	res.FinalSize = int64(buf.Len())
	return res, nil
}

// quantizeFrames 用一个直方图累积全部帧，量化一次，再按帧序逐帧重映射。
// 单帧文件同样走这里，只是直方图里只有一帧。
func quantizeFrames(anim *codec.Animation, p Params, progress ProgressFunc) (*quant.Result, error) {
	attr := quant.NewAttributes()
	if err := attr.SetSpeed(p.Speed); err != nil {
		return nil, err
	}
	lo, hi := p.Quality.Resolve()
	if err := attr.SetQuality(lo, hi); err != nil {
		return nil, err
	}
	attr.SetProgressCallback(quant.ProgressFunc(progress))

	hist := quant.NewHistogram(attr)
	for i := range anim.Frames {
		if err := hist.AddImage(anim.Frames[i].Image); err != nil {
			return nil, fmt.Errorf("第 %d 帧：%w", i, err)
		}
	}
	qr, err := hist.Quantize()
	if err != nil {
		return nil, err
	}
	if err := qr.SetDitheringLevel(p.DitheringLevel); err != nil {
		return nil, err
	}

	for i := range anim.Frames {
		idx, err := qr.Remap(anim.Frames[i].Image)
		if err != nil {
			return nil, fmt.Errorf("第 %d 帧：%w", i, err)
		}
		anim.Frames[i].Indexed = idx
	}
	return qr, nil
}
