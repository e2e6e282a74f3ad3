package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"

	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/kettek/apng"
)

// EncodePNG 把索引图写成单帧 PNG（PLTE + tRNS，不含 acTL）。
func EncodePNG(w io.Writer, img *image.Paletted, c domain.Compression) error {
	if img == nil {
		return errors.New("image 不能为空")
	}
	enc := png.Encoder{CompressionLevel: pngLevel(c)}
	return enc.Encode(w, img)
}

// EncodeAPNG 按原有帧序写出动画。每帧必须已有 Indexed，且全部帧共用第一帧的调色板。
//
// acTL 由这里重写：num_frames 只计动画帧（不含默认图像），单帧动画同样保留 acTL 与循环次数。
func EncodeAPNG(w io.Writer, a *Animation, c domain.Compression) error {
	if a == nil || len(a.Frames) == 0 {
		return errors.New("animation 不能为空")
	}
	n := a.AnimatedFrames()
	if n == 0 {
		return errors.New("animation 没有动画帧")
	}

	out := apng.APNG{
		LoopCount: a.LoopCount,
		Frames:    make([]apng.Frame, 0, len(a.Frames)),
	}
	for i, f := range a.Frames {
		if f.Indexed == nil {
			return fmt.Errorf("第 %d 帧尚未重映射", i)
		}
		out.Frames = append(out.Frames, apng.Frame{
			Image:            f.Indexed,
			XOffset:          f.XOffset,
			YOffset:          f.YOffset,
			DelayNumerator:   f.DelayNumerator,
			DelayDenominator: f.DelayDenominator,
			DisposeOp:        byte(f.DisposeOp),
			BlendOp:          byte(f.BlendOp),
			IsDefault:        f.IsDefault,
		})
	}

	var buf bytes.Buffer
	enc := apng.Encoder{CompressionLevel: apngLevel(c)}
	if err := enc.Encode(&buf, out); err != nil {
		return err
	}
	b, err := setAnimationControl(buf.Bytes(), uint32(n), uint32(a.LoopCount))
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// setAnimationControl 去掉已有的 acTL，并在第一个 fcTL/IDAT 之前写入新的 acTL。
func setAnimationControl(data []byte, numFrames, loops uint32) ([]byte, error) {
	var ctl [8]byte
	binary.BigEndian.PutUint32(ctl[0:4], numFrames)
	binary.BigEndian.PutUint32(ctl[4:8], loops)

	out := make([]byte, 0, len(data)+20)
	out = append(out, pngSignature...)
	written := false
	err := walkChunks(data, func(typ string, body []byte) bool {
		switch typ {
		case "acTL":
			return true
		case "fcTL", "IDAT":
			if !written {
				out = appendChunk(out, "acTL", ctl[:])
				written = true
			}
		}
		out = appendChunk(out, typ, body)
		return true
	})
	if err != nil {
		return nil, err
	}
	if !written {
		return nil, errors.New("编码结果中没有图像数据")
	}
	return out, nil
}

func appendChunk(dst []byte, typ string, body []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)))
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, body...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}

// default 与 equal 目前都映射为最高压缩，仍作为两个不同的配置值保留。
func pngLevel(c domain.Compression) png.CompressionLevel {
	switch c {
	case domain.CompressionFast:
		return png.BestSpeed
	default:
		return png.BestCompression
	}
}

func apngLevel(c domain.Compression) apng.CompressionLevel {
	switch c {
	case domain.CompressionFast:
		return apng.BestSpeed
	default:
		return apng.BestCompression
	}
}
