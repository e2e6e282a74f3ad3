// Package codec 负责 PNG/APNG 的头部检查、逐帧解码与索引色编码。
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var (
	ErrNotPNG    = errors.New("不是 PNG 文件")
	ErrBadHeader = errors.New("PNG 头部损坏")
)

// ColorMode 是 IHDR 中的 colour type 字段。
type ColorMode uint8

const (
	ColorGray      ColorMode = 0
	ColorRGB       ColorMode = 2
	ColorIndexed   ColorMode = 3
	ColorGrayAlpha ColorMode = 4
	ColorRGBA      ColorMode = 6
)

func (m ColorMode) String() string {
	switch m {
	case ColorGray:
		return "gray"
	case ColorRGB:
		return "rgb"
	case ColorIndexed:
		return "indexed"
	case ColorGrayAlpha:
		return "gray_alpha"
	case ColorRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Header 是 IHDR 中与转码相关的字段；Animated/NumFrames/LoopCount 来自 IDAT 之前的 acTL 块。
type Header struct {
	Width     int
	Height    int
	ColorMode ColorMode

	Animated  bool
	NumFrames int
	LoopCount uint
}

// IHDR 必须紧跟签名：长度(4) + 类型(4) + 13 字节数据。
const ihdrEnd = 8 + 8 + 13

// ParseHeader 解析完整文件字节中的 IHDR，并在 IDAT 之前查找 acTL。
// 块结构损坏留给解码阶段报告，这里只读到能读的位置。
func ParseHeader(data []byte) (Header, error) {
	h, err := parseIHDR(data)
	if err != nil {
		return Header{}, err
	}

	_ = walkChunks(data, func(typ string, body []byte) bool {
		switch typ {
		case "acTL":
			if len(body) >= 8 {
				h.Animated = true
				h.NumFrames = int(binary.BigEndian.Uint32(body[0:4]))
				h.LoopCount = uint(binary.BigEndian.Uint32(body[4:8]))
			}
			return false
		case "IDAT", "IEND":
			return false
		}
		return true
	})
	return h, nil
}

// walkChunks 依次把签名之后的每个块交给 fn（body 不含长度、类型与 CRC）；fn 返回 false 时停止。
// 块长度越界时返回 ErrBadHeader。
func walkChunks(data []byte, fn func(typ string, body []byte) bool) error {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return ErrNotPNG
	}
	off := len(pngSignature)
	for off < len(data) {
		if off+8 > len(data) {
			return ErrBadHeader
		}
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		body := off + 8
		if n < 0 || body+n+4 > len(data) {
			return ErrBadHeader
		}
		if !fn(string(data[off+4:off+8]), data[body:body+n]) {
			return nil
		}
		off = body + n + 4
	}
	return nil
}

func parseIHDR(data []byte) (Header, error) {
	if len(data) < ihdrEnd || !bytes.Equal(data[:8], pngSignature) {
		return Header{}, ErrNotPNG
	}
	if binary.BigEndian.Uint32(data[8:12]) != 13 || string(data[12:16]) != "IHDR" {
		return Header{}, ErrBadHeader
	}
	d := data[16:ihdrEnd]
	h := Header{
		Width:     int(binary.BigEndian.Uint32(d[0:4])),
		Height:    int(binary.BigEndian.Uint32(d[4:8])),
		ColorMode: ColorMode(d[9]),
	}
	if h.Width <= 0 || h.Height <= 0 {
		return Header{}, fmt.Errorf("尺寸 %dx%d：%w", h.Width, h.Height, ErrBadHeader)
	}
	return h, nil
}
