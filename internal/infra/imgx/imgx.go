package imgx

import (
	"image"

	"golang.org/x/image/draw"
)

// ToNRGBA 把任意图像转换为原点在 (0,0) 的 *image.NRGBA（非预乘 alpha）。
//
// 约束：
// - 已经是原点对齐的 *image.NRGBA 时直接返回，不复制
// - 其他类型（NRGBA64、偏移的子图等）按 draw.Src 复制，保留透明度
func ToNRGBA(img image.Image) *image.NRGBA {
	if img == nil {
		return image.NewNRGBA(image.Rectangle{})
	}
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}
