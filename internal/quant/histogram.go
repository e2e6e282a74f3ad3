package quant

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
)

// Histogram 累积一帧或多帧的颜色分布。多帧共用一个 Histogram 才能得到共享调色板。
type Histogram struct {
	attr   *Attributes
	counts map[uint32]uint64
	pixels uint64
}

func NewHistogram(attr *Attributes) *Histogram {
	if attr == nil {
		attr = NewAttributes()
	}
	return &Histogram{attr: attr, counts: make(map[uint32]uint64)}
}

// AddImage 把图像的全部像素计入直方图。完全透明像素统一归一化为 (0,0,0,0)。
func (h *Histogram) AddImage(img *image.NRGBA) error {
	if img == nil {
		return errors.New("image 不能为空")
	}
	shift := h.attr.posterizeBits()
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			c := normalize(color.NRGBA{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]})
			if shift > 0 && c.A != 0 {
				c.R = posterize(c.R, shift)
				c.G = posterize(c.G, shift)
				c.B = posterize(c.B, shift)
			}
			h.counts[pack(c)]++
			h.pixels++
		}
	}
	return nil
}

// Quantize 从直方图生成调色板。
//
// 过程：方差中位切分（进度 0-60）→ k-means 细化（60-95）→ 质量评估（100）。
// 切分在颜色数达到上限、质量达到 max 或无可再分的盒子时停止。
func (h *Histogram) Quantize() (*Result, error) {
	if h.pixels == 0 {
		return nil, ErrEmptyHistogram
	}
	pr := &progressReporter{fn: h.attr.progress}

	entries := make([]entry, 0, len(h.counts))
	for k, n := range h.counts {
		entries = append(entries, entry{c: unpackVec(k), w: float64(n)})
	}
	// map 遍历顺序随机；排序后结果可复现。
	sort.Slice(entries, func(i, j int) bool { return entries[i].c.less(entries[j].c) })

	totalW := float64(h.pixels)
	targetMSE := mseForQuality(h.attr.maxQuality)
	maxColors := h.attr.maxColors

	boxes := []*box{newBox(entries)}
	for len(boxes) < maxColors {
		if sumSSE(boxes)/totalW/4 <= targetMSE {
			break
		}
		idx := -1
		for i, bx := range boxes {
			if len(bx.entries) < 2 || bx.sse <= 0 {
				continue
			}
			if idx < 0 || bx.sse > boxes[idx].sse {
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		a, b := boxes[idx].split()
		boxes[idx] = a
		boxes = append(boxes, b)
		pr.report(60 * float64(len(boxes)) / float64(maxColors))
	}
	pr.report(60)

	pal := make([]vec, len(boxes))
	for i, bx := range boxes {
		pal[i] = bx.mean
	}

	iters := h.attr.kmeansIterations()
	for it := 0; it < iters; it++ {
		pal = refine(entries, pal)
		pr.report(60 + 35*float64(it+1)/float64(iters))
	}
	pr.report(95)

	mse := measureMSE(entries, pal) / totalW / 4
	quality := qualityFromMSE(mse)
	pr.report(100)
	if quality < h.attr.minQuality {
		return nil, fmt.Errorf("quality=%d < min=%d：%w", quality, h.attr.minQuality, ErrQualityTooLow)
	}

	return newResult(pal, quality), nil
}

type entry struct {
	c vec
	w float64
}

type box struct {
	entries []entry
	mean    vec
	vari    vec
	sse     float64
}

func newBox(entries []entry) *box {
	b := &box{entries: entries}
	var wsum float64
	var sum vec
	for _, e := range entries {
		wsum += e.w
		for k := 0; k < 4; k++ {
			sum[k] += e.c[k] * e.w
		}
	}
	for k := 0; k < 4; k++ {
		b.mean[k] = sum[k] / wsum
	}
	for _, e := range entries {
		for k := 0; k < 4; k++ {
			d := e.c[k] - b.mean[k]
			b.vari[k] += d * d * e.w
		}
	}
	for k := 0; k < 4; k++ {
		b.sse += b.vari[k]
	}
	return b
}

// split 沿方差最大的通道、在加权中位数处一分为二。调用方保证至少 2 个条目。
func (b *box) split() (*box, *box) {
	ch := 0
	for k := 1; k < 4; k++ {
		if b.vari[k] > b.vari[ch] {
			ch = k
		}
	}
	es := b.entries
	sort.SliceStable(es, func(i, j int) bool { return es[i].c[ch] < es[j].c[ch] })

	var total float64
	for _, e := range es {
		total += e.w
	}
	half := total / 2
	cut := 1
	var acc float64
	for i, e := range es {
		acc += e.w
		if acc >= half {
			cut = i + 1
			break
		}
	}
	if cut >= len(es) {
		cut = len(es) - 1
	}
	if cut < 1 {
		cut = 1
	}
	return newBox(es[:cut]), newBox(es[cut:])
}

func sumSSE(boxes []*box) float64 {
	var s float64
	for _, b := range boxes {
		s += b.sse
	}
	return s
}

// refine 做一轮加权 k-means：每个颜色归入最近的调色板项，再用组内均值替换该项。
// 空组保留原值。
func refine(entries []entry, pal []vec) []vec {
	sums := make([]vec, len(pal))
	ws := make([]float64, len(pal))
	for _, e := range entries {
		i := nearest(pal, e.c)
		for k := 0; k < 4; k++ {
			sums[i][k] += e.c[k] * e.w
		}
		ws[i] += e.w
	}
	out := make([]vec, len(pal))
	for i := range pal {
		if ws[i] == 0 {
			out[i] = pal[i]
			continue
		}
		for k := 0; k < 4; k++ {
			out[i][k] = sums[i][k] / ws[i]
		}
	}
	return out
}

func measureMSE(entries []entry, pal []vec) float64 {
	var s float64
	for _, e := range entries {
		s += pal[nearest(pal, e.c)].dist(e.c) * e.w
	}
	return s
}
