package domain

import "fmt"

// Compression 是输出 PNG 的压缩强度选择器。
//
// equal 与 default 目前映射到同一个编码级别，但作为独立的配置值保留。
type Compression string

const (
	CompressionFast    Compression = "fast"
	CompressionDefault Compression = "default"
	CompressionEqual   Compression = "equal"
)

// ParseCompression 解析选择器（大小写敏感，与 CLI 帮助保持一致）。
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case CompressionFast, CompressionDefault, CompressionEqual:
		return Compression(s), nil
	case "":
		return "", fmt.Errorf("compression 不能为空")
	default:
		return "", fmt.Errorf("compression 只能是 fast、default 或 equal，实际是 %q", s)
	}
}
