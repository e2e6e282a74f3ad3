package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/pngslim/internal/codec"
	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/kettek/apng"
)

// frameImage 生成带半透明像素的小图，颜色数有限。
func frameImage(w, h, seed int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if (x+y+seed)%5 == 0 {
				a = 96
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8((x / 2) * 32), G: uint8((y / 2) * 32), B: uint8(seed * 40), A: a})
		}
	}
	return img
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	return p
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码失败：%v", err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func chunkTypes(t *testing.T, data []byte) []string {
	t.Helper()
	var out []string
	off := 8
	for off+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[off:]))
		out = append(out, string(data[off+4:off+8]))
		off += 12 + n
	}
	return out
}

// encodeAnimated 用 apng 库写出测试动画，并把 acTL 改为声明 frames 帧
// （该库按 len(Frames) 计数，包括默认图像；单帧时不写 acTL）。
func encodeAnimated(t *testing.T, src apng.APNG, frames uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := apng.Encode(&buf, src); err != nil {
		t.Fatalf("编码测试动画失败：%v", err)
	}
	data := buf.Bytes()

	var ctl [8]byte
	binary.BigEndian.PutUint32(ctl[0:4], frames)
	binary.BigEndian.PutUint32(ctl[4:8], uint32(src.LoopCount))

	out := append([]byte{}, data[:8]...)
	inserted := false
	for off := 8; off+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[off:]))
		typ := string(data[off+4 : off+8])
		chunk := data[off : off+12+n]
		off += 12 + n
		if typ == "acTL" {
			continue
		}
		if !inserted && (typ == "fcTL" || typ == "IDAT") {
			out = binary.BigEndian.AppendUint32(out, uint32(len(ctl)))
			start := len(out)
			out = append(out, "acTL"...)
			out = append(out, ctl[:]...)
			out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[start:]))
			inserted = true
		}
		out = append(out, chunk...)
	}
	return out
}

func count(types []string, want string) int {
	n := 0
	for _, s := range types {
		if s == want {
			n++
		}
	}
	return n
}

func TestTranscode_SingleFrame(t *testing.T) {
	dir := t.TempDir()
	p := writePNG(t, dir, "a.png", frameImage(16, 16, 1))
	before, _ := os.Stat(p)

	var got []float64
	res, err := Transcode(p, DefaultParams(), func(v float64) { got = append(got, v) })
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.OriginalSize != before.Size() {
		t.Fatalf("OriginalSize=%d，期望 %d", res.OriginalSize, before.Size())
	}
	after, _ := os.Stat(p)
	if res.FinalSize != after.Size() {
		t.Fatalf("FinalSize=%d，实际文件 %d", res.FinalSize, after.Size())
	}
	if res.Animated || res.Frames != 1 || res.Colors == 0 || res.Colors > 256 {
		t.Fatalf("结果不符合预期：%+v", res)
	}

	data, _ := os.ReadFile(p)
	h, err := codec.ParseHeader(data)
	if err != nil || h.ColorMode != codec.ColorIndexed {
		t.Fatalf("输出应为索引色：%+v %v", h, err)
	}
	types := chunkTypes(t, data)
	if count(types, "PLTE") != 1 || count(types, "tRNS") != 1 || count(types, "acTL") != 0 {
		t.Fatalf("块结构不符合预期：%v", types)
	}

	if len(got) == 0 || got[len(got)-1] != domain.ProgressCeiling {
		t.Fatalf("最后一次进度应为 %v：%v", domain.ProgressCeiling, got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("进度回退：%v", got)
		}
	}
}

func TestTranscode_AnimatedSharedPalette(t *testing.T) {
	dir := t.TempDir()
	src := apng.APNG{LoopCount: 2}
	for i := 0; i < 5; i++ {
		src.Frames = append(src.Frames, apng.Frame{
			Image:            frameImage(12, 12, i),
			DelayNumerator:   uint16(i + 1),
			DelayDenominator: 30,
			DisposeOp:        byte(codec.DisposeBackground),
			BlendOp:          byte(codec.BlendSource),
		})
	}
	var in bytes.Buffer
	if err := apng.Encode(&in, src); err != nil {
		t.Fatalf("编码测试动画失败：%v", err)
	}
	p := writeFile(t, dir, "anim.png", in.Bytes())

	params := DefaultParams()
	params.Speed = 4
	params.Quality = domain.QualityBounds{Min: 40, MinSet: true, Max: 80, MaxSet: true}
	res, err := Transcode(p, params, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Animated || res.Frames != 5 || res.Quality < 40 {
		t.Fatalf("结果不符合预期：%+v", res)
	}

	data, _ := os.ReadFile(p)
	types := chunkTypes(t, data)
	if count(types, "PLTE") != 1 || count(types, "acTL") != 1 || count(types, "fcTL") != 5 {
		t.Fatalf("输出块结构不符合预期：%v", types)
	}

	h, _ := codec.ParseHeader(data)
	if h.ColorMode != codec.ColorIndexed || h.NumFrames != 5 || h.LoopCount != 2 {
		t.Fatalf("输出头部不符合预期：%+v", h)
	}
	back, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("回读失败：%v", err)
	}
	for i, f := range back.Frames {
		if f.Width() != 12 || f.Height() != 12 ||
			f.DelayNumerator != uint16(i+1) || f.DelayDenominator != 30 ||
			f.DisposeOp != codec.DisposeBackground || f.BlendOp != codec.BlendSource {
			t.Fatalf("第 %d 帧元数据不一致：%+v", i, f)
		}
	}
}

func TestTranscode_IndexedInputUntouched(t *testing.T) {
	dir := t.TempDir()
	pal := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	p := writePNG(t, dir, "idx.png", pal)
	before, _ := os.ReadFile(p)

	_, err := Transcode(p, DefaultParams(), nil)
	if !errors.Is(err, ErrUnsupportedColorMode) {
		t.Fatalf("期望 ErrUnsupportedColorMode，实际 %v", err)
	}
	var ue *UnsupportedColorModeError
	if !errors.As(err, &ue) || ue.Mode != codec.ColorIndexed {
		t.Fatalf("错误类型不符合预期：%T %v", err, err)
	}
	if Code(err) != domain.ErrCodeUnsupportedColorMode || Outcome(err) != domain.StatusUnhandled {
		t.Fatalf("code=%s outcome=%s", Code(err), Outcome(err))
	}
	after, _ := os.ReadFile(p)
	if !bytes.Equal(before, after) {
		t.Fatalf("不支持的文件不应被修改")
	}
}

func TestTranscode_Failures(t *testing.T) {
	dir := t.TempDir()

	var full bytes.Buffer
	_ = png.Encode(&full, frameImage(8, 8, 0))
	truncated := writeFile(t, dir, "trunc.png", full.Bytes()[:40])

	noisy := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	rnd := rand.New(rand.NewSource(1))
	for i := range noisy.Pix {
		noisy.Pix[i] = uint8(rnd.Intn(256))
	}
	hard := writePNG(t, dir, "hard.png", noisy)

	strict := DefaultParams()
	strict.Quality = domain.QualityBounds{Min: 100, MinSet: true, Max: 100, MaxSet: true}
	strict.Speed = 10

	tests := []struct {
		name   string
		path   string
		params Params
		stage  Stage
		code   string
	}{
		{"missing", filepath.Join(dir, "nope.png"), DefaultParams(), StageRead, domain.ErrCodeIOFailed},
		{"truncated", truncated, DefaultParams(), StageDecode, domain.ErrCodeDecodeFailed},
		{"quality", hard, strict, StageQuantize, domain.ErrCodeQuantizeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := os.ReadFile(tt.path)
			_, err := Transcode(tt.path, tt.params, nil)
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tt.stage {
				t.Fatalf("期望 %s 阶段错误，实际 %T %v", tt.stage, err, err)
			}
			if Code(err) != tt.code || Outcome(err) != domain.StatusFailed {
				t.Fatalf("code=%s outcome=%s", Code(err), Outcome(err))
			}
			after, _ := os.ReadFile(tt.path)
			if !bytes.Equal(before, after) {
				t.Fatalf("失败时文件不应被修改")
			}
		})
	}
}

func TestTranscode_AnimatedWithDefaultImage(t *testing.T) {
	dir := t.TempDir()
	src := apng.APNG{LoopCount: 4, Frames: []apng.Frame{
		{Image: frameImage(10, 10, 0), IsDefault: true},
		{Image: frameImage(10, 10, 1), DelayNumerator: 1, DelayDenominator: 10},
		{Image: frameImage(6, 6, 2), XOffset: 2, YOffset: 3, DelayNumerator: 3, DelayDenominator: 10, BlendOp: byte(codec.BlendOver)},
	}}
	p := writeFile(t, dir, "default.png", encodeAnimated(t, src, 2))

	res, err := Transcode(p, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Animated || res.Frames != 3 {
		t.Fatalf("结果不符合预期：%+v", res)
	}

	data, _ := os.ReadFile(p)
	types := chunkTypes(t, data)
	h, _ := codec.ParseHeader(data)
	if h.NumFrames != 2 || h.LoopCount != 4 || count(types, "acTL") != 1 || count(types, "fcTL") != 2 {
		t.Fatalf("acTL 帧数必须等于 fcTL 数：%+v chunks=%v", h, types)
	}

	back, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("回读失败：%v", err)
	}
	if len(back.Frames) != 3 || !back.Frames[0].IsDefault || back.AnimatedFrames() != 2 {
		t.Fatalf("默认图像应保留且不计入动画帧：%+v", back.Frames)
	}
	last := back.Frames[2]
	if last.Width() != 6 || last.XOffset != 2 || last.YOffset != 3 || last.DelayNumerator != 3 || last.BlendOp != codec.BlendOver {
		t.Fatalf("最后一帧元数据不一致：%+v", last)
	}
}

func TestTranscode_SingleFrameAnimation(t *testing.T) {
	dir := t.TempDir()
	src := apng.APNG{LoopCount: 3, Frames: []apng.Frame{
		{Image: frameImage(8, 8, 1), DelayNumerator: 1, DelayDenominator: 4},
	}}
	p := writeFile(t, dir, "one.png", encodeAnimated(t, src, 1))

	res, err := Transcode(p, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Animated || res.Frames != 1 {
		t.Fatalf("结果不符合预期：%+v", res)
	}

	data, _ := os.ReadFile(p)
	types := chunkTypes(t, data)
	h, _ := codec.ParseHeader(data)
	if !h.Animated || h.NumFrames != 1 || h.LoopCount != 3 || count(types, "acTL") != 1 || count(types, "fcTL") != 1 {
		t.Fatalf("单帧动画必须仍是 APNG：%+v chunks=%v", h, types)
	}
}

// grayLevels 生成 16 列等距灰阶（0,17,...,255），每列像素数相同。
func grayLevels() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(x * 17)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 200})
		}
	}
	return img
}

func TestTranscode_OneSidedQualityReachesQuantizer(t *testing.T) {
	tests := []struct {
		name    string
		quality domain.QualityBounds
		check   func(t *testing.T, res Result)
	}{
		{
			name: "default_max_60_stops_early",
			check: func(t *testing.T, res Result) {
				if res.Colors >= 16 {
					t.Fatalf("默认 max=60 时不应用满 16 色：%+v", res)
				}
			},
		},
		{
			name:    "only_max_100",
			quality: domain.QualityBounds{Max: 100, MaxSet: true},
			check: func(t *testing.T, res Result) {
				if res.Colors != 16 || res.Quality != 100 {
					t.Fatalf("max=100 应保留全部 16 色：%+v", res)
				}
			},
		},
		{
			name:    "only_min_above_default_max",
			quality: domain.QualityBounds{Min: 80, MinSet: true},
			check: func(t *testing.T, res Result) {
				if res.Quality < 80 {
					t.Fatalf("min=80 应被量化器满足：%+v", res)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writePNG(t, t.TempDir(), "gray.png", grayLevels())
			params := DefaultParams()
			params.Quality = tt.quality
			res, err := Transcode(p, params, nil)
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			tt.check(t, res)
		})
	}
}
