package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/John-Robertt/pngslim/internal/infra/imgx"
	"github.com/kettek/apng"
)

// DisposeOp 对应 fcTL 的 dispose_op。
type DisposeOp uint8

const (
	DisposeNone       DisposeOp = 0
	DisposeBackground DisposeOp = 1
	DisposePrevious   DisposeOp = 2
)

// BlendOp 对应 fcTL 的 blend_op。
type BlendOp uint8

const (
	BlendSource BlendOp = 0
	BlendOver   BlendOp = 1
)

// Frame 是一帧像素及其控制信息。
//
// Image 始终是原点为 (0,0) 的 NRGBA；帧在画布上的位置由 XOffset/YOffset 给出。
// Indexed 在重映射后填充，编码时优先使用。
type Frame struct {
	Image   *image.NRGBA
	Indexed *image.Paletted

	XOffset, YOffset int

	DelayNumerator   uint16
	DelayDenominator uint16
	DisposeOp        DisposeOp
	BlendOp          BlendOp

	// IsDefault 表示该帧是 IDAT 默认图像且不属于动画序列。
	IsDefault bool
}

func (f Frame) Width() int  { return f.Image.Rect.Dx() }
func (f Frame) Height() int { return f.Image.Rect.Dy() }

// Animation 是解码后的完整文件：单帧 PNG 也用它表示（Animated=false，1 帧）。
type Animation struct {
	Width, Height int
	LoopCount     uint
	Animated      bool
	Frames        []Frame
}

// Decode 解码全部帧。帧顺序与文件中完全一致。
func Decode(data []byte) (*Animation, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	if !h.Animated {
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("解码 PNG 失败：%w", err)
		}
		return &Animation{
			Width:  h.Width,
			Height: h.Height,
			Frames: []Frame{{Image: imgx.ToNRGBA(img)}},
		}, nil
	}

	a, err := apng.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码 APNG 失败：%w", err)
	}
	if len(a.Frames) == 0 {
		return nil, fmt.Errorf("APNG 不含任何帧")
	}

	out := &Animation{
		Width:     h.Width,
		Height:    h.Height,
		LoopCount: a.LoopCount,
		Animated:  true,
		Frames:    make([]Frame, 0, len(a.Frames)),
	}
	for i, f := range a.Frames {
		if f.Image == nil {
			return nil, fmt.Errorf("第 %d 帧没有像素数据", i)
		}
		out.Frames = append(out.Frames, Frame{
			Image:            imgx.ToNRGBA(f.Image),
			XOffset:          f.XOffset,
			YOffset:          f.YOffset,
			DelayNumerator:   f.DelayNumerator,
			DelayDenominator: f.DelayDenominator,
			DisposeOp:        DisposeOp(f.DisposeOp),
			BlendOp:          BlendOp(f.BlendOp),
			IsDefault:        f.IsDefault,
		})
	}
	if n := out.AnimatedFrames(); n != h.NumFrames {
		return nil, fmt.Errorf("acTL 声明 %d 帧，实际解码出 %d 帧", h.NumFrames, n)
	}
	return out, nil
}

// AnimatedFrames 返回属于动画序列的帧数（不含默认图像）。
func (a *Animation) AnimatedFrames() int {
	n := 0
	for _, f := range a.Frames {
		if !f.IsDefault {
			n++
		}
	}
	return n
}
