// Package quant 把 RGBA 像素量化为不超过 256 色的调色板，并把图像重映射为索引图。
//
// 用法分三步：Attributes 配置速度/质量/颜色数 → Histogram 累积一帧或多帧像素 →
// Quantize 得到 Result，再用 Result.Remap 逐帧生成 *image.Paletted。
// 同一个 Result 可以重映射任意多帧，所有帧共享同一调色板。
package quant

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrQualityTooLow 表示在颜色数上限内无法达到质量下限。
	ErrQualityTooLow = errors.New("量化质量低于下限")
	// ErrValueOutOfRange 表示参数越界。
	ErrValueOutOfRange = errors.New("参数越界")
	// ErrEmptyHistogram 表示直方图中没有任何像素。
	ErrEmptyHistogram = errors.New("直方图为空")
)

const (
	MinSpeed     = 1
	MaxSpeed     = 10
	MaxColors    = 256
	MinQuality   = 0
	MaxQuality   = 100
	defaultSpeed = 4
)

// ProgressFunc 接收 [0,100] 的量化进度；同一次 Quantize 内单调不减。
type ProgressFunc func(percent float64)

// Attributes 是一次量化的参数集合。零值不可用，请使用 NewAttributes。
type Attributes struct {
	speed      int
	minQuality int
	maxQuality int
	maxColors  int
	progress   ProgressFunc
}

func NewAttributes() *Attributes {
	return &Attributes{
		speed:      defaultSpeed,
		minQuality: MinQuality,
		maxQuality: MaxQuality,
		maxColors:  MaxColors,
	}
}

// SetSpeed 设置速度（1 最慢最好，10 最快）。
func (a *Attributes) SetSpeed(speed int) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("speed=%d：%w", speed, ErrValueOutOfRange)
	}
	a.speed = speed
	return nil
}

// SetQuality 设置质量区间：达到 hi 即停止增加颜色；最终低于 lo 返回 ErrQualityTooLow。
func (a *Attributes) SetQuality(lo, hi int) error {
	if lo < MinQuality || hi > MaxQuality || lo > hi {
		return fmt.Errorf("quality=%d-%d：%w", lo, hi, ErrValueOutOfRange)
	}
	a.minQuality = lo
	a.maxQuality = hi
	return nil
}

func (a *Attributes) SetProgressCallback(fn ProgressFunc) { a.progress = fn }

// posterizeBits：速度 >= 8 时丢弃 RGB 最低位，减少直方图中的颜色数。
func (a *Attributes) posterizeBits() uint {
	if a.speed >= 8 {
		return 1
	}
	return 0
}

// kmeansIterations：速度越快，调色板细化轮数越少。
func (a *Attributes) kmeansIterations() int {
	n := (MaxSpeed - a.speed + 1) / 2
	if n < 0 {
		return 0
	}
	return n
}

// qualityRange 是 MSE 与质量分数换算时的 RMS 跨度：RMS 达到该值即视为 0 分。
const qualityRange = 64.0

// qualityFromMSE 把每通道均方误差换算为 0-100 的质量分数。
func qualityFromMSE(mse float64) int {
	if mse <= 0 {
		return MaxQuality
	}
	q := 100 * (1 - math.Sqrt(mse)/qualityRange)
	q = math.Round(q)
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return int(q)
}

// mseForQuality 是 qualityFromMSE 的反函数，用于判断是否已达到 max 质量。
func mseForQuality(q int) float64 {
	if q >= MaxQuality {
		return 0
	}
	rms := qualityRange * (1 - float64(q)/100)
	return rms * rms
}

// progressReporter 保证回调值单调不减。
type progressReporter struct {
	fn   ProgressFunc
	last float64
}

func (p *progressReporter) report(v float64) {
	if p.fn == nil {
		return
	}
	if v > 100 {
		v = 100
	}
	if v <= p.last {
		return
	}
	p.last = v
	p.fn(v)
}
