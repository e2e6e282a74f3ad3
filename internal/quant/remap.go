package quant

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
)

// Result 是一次量化的结果：调色板 + 质量。可对多帧重复调用 Remap。
type Result struct {
	palette color.Palette
	vecs    []vec
	quality int
	dither  float64
}

func newResult(pal []vec, quality int) *Result {
	cs := make([]color.NRGBA, len(pal))
	for i, v := range pal {
		cs[i] = v.nrgba()
	}
	// alpha 升序：透明项集中在前面，tRNS 块可以更短。
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].A < cs[j].A })

	r := &Result{quality: quality, dither: 1}
	r.palette = make(color.Palette, len(cs))
	r.vecs = make([]vec, len(cs))
	for i, c := range cs {
		r.palette[i] = c
		r.vecs[i] = vecOf(c)
	}
	return r
}

// SetDitheringLevel 设置 Floyd-Steinberg 抖动强度，0 关闭，1 为完整误差扩散。
func (r *Result) SetDitheringLevel(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return fmt.Errorf("dithering_level=%v：%w", level, ErrValueOutOfRange)
	}
	r.dither = level
	return nil
}

// Palette 返回调色板副本（元素为 color.NRGBA）。
func (r *Result) Palette() color.Palette {
	out := make(color.Palette, len(r.palette))
	copy(out, r.palette)
	return out
}

// Quality 返回 0-100 的质量分数。
func (r *Result) Quality() int { return r.quality }

// Remap 把图像映射到调色板。返回的索引图原点为 (0,0)，调色板与 Palette() 相同。
func (r *Result) Remap(img *image.NRGBA) (*image.Paletted, error) {
	if img == nil {
		return nil, errors.New("image 不能为空")
	}
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	dst := image.NewPaletted(image.Rect(0, 0, w, h), r.Palette())
	if w == 0 || h == 0 {
		return dst, nil
	}

	if r.dither == 0 {
		cache := make(map[uint32]uint8)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := normalize(img.NRGBAAt(b.Min.X+x, b.Min.Y+y))
				k := pack(c)
				idx, ok := cache[k]
				if !ok {
					idx = uint8(nearest(r.vecs, vecOf(c)))
					cache[k] = idx
				}
				dst.Pix[y*dst.Stride+x] = idx
			}
		}
		return dst, nil
	}

	// 两行误差缓冲，左右各留一格避免边界判断。
	cur := make([]vec, w+2)
	next := make([]vec, w+2)
	level := r.dither
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := normalize(img.NRGBAAt(b.Min.X+x, b.Min.Y+y))
			// 完全透明像素不参与误差扩散。
			if c.A == 0 {
				dst.Pix[y*dst.Stride+x] = uint8(nearest(r.vecs, vec{}))
				continue
			}
			want := vecOf(c)
			for k := 0; k < 4; k++ {
				want[k] = clamp255(want[k] + cur[x+1][k])
			}
			idx := nearest(r.vecs, want)
			dst.Pix[y*dst.Stride+x] = uint8(idx)

			got := r.vecs[idx]
			for k := 0; k < 4; k++ {
				e := (want[k] - got[k]) * level
				cur[x+2][k] += e * 7 / 16
				next[x][k] += e * 3 / 16
				next[x+1][k] += e * 5 / 16
				next[x+2][k] += e * 1 / 16
			}
		}
		cur, next = next, cur
		for i := range next {
			next[i] = vec{}
		}
	}
	return dst, nil
}

// vec 是 [R,G,B,A]，取值 0-255。
type vec [4]float64

func vecOf(c color.NRGBA) vec {
	return vec{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}
}

func unpackVec(k uint32) vec {
	return vec{float64(k >> 24), float64(k >> 16 & 0xff), float64(k >> 8 & 0xff), float64(k & 0xff)}
}

func (v vec) nrgba() color.NRGBA {
	return color.NRGBA{
		R: uint8(math.Round(clamp255(v[0]))),
		G: uint8(math.Round(clamp255(v[1]))),
		B: uint8(math.Round(clamp255(v[2]))),
		A: uint8(math.Round(clamp255(v[3]))),
	}
}

func (v vec) dist(o vec) float64 {
	var d float64
	for k := 0; k < 4; k++ {
		x := v[k] - o[k]
		d += x * x
	}
	return d
}

func (v vec) less(o vec) bool {
	for k := 0; k < 4; k++ {
		if v[k] != o[k] {
			return v[k] < o[k]
		}
	}
	return false
}

func nearest(pal []vec, c vec) int {
	best := 0
	bestD := math.Inf(1)
	for i, p := range pal {
		if d := p.dist(c); d < bestD {
			best, bestD = i, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

func normalize(c color.NRGBA) color.NRGBA {
	if c.A == 0 {
		return color.NRGBA{}
	}
	return c
}

func pack(c color.NRGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

func posterize(v uint8, bits uint) uint8 {
	mask := uint8(0xff) << bits
	// 保留高位并把高位复制到低位，255 仍是 255。
	return v&mask | v>>(8-bits)
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
