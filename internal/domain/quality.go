package domain

const (
	// DefaultQualityMin 是未指定最低质量时使用的值。
	DefaultQualityMin = 0
	// DefaultQualityMax 是未指定最高质量时使用的保守默认值（明显低于 100）。
	DefaultQualityMax = 60
	// DefaultSpeed 与量化器的默认速度一致。
	DefaultSpeed = 4
	// DefaultDitheringLevel 1.0 可获得平滑的图像。
	DefaultDitheringLevel = 1.0
)

// QualityBounds 保留“是否显式指定”的信息，供 Resolve 做缺省配对。
type QualityBounds struct {
	Min    int
	MinSet bool
	Max    int
	MaxSet bool
}

// Resolve 返回最终生效的 [lo, hi]：
// - 两者都指定：原样使用
// - 只指定 min：与 DefaultQualityMax 配对；min 更高时 max 抬到 min
// - 只指定 max：与 DefaultQualityMin 配对
// - 都未指定：(0, DefaultQualityMax)
func (q QualityBounds) Resolve() (lo, hi int) {
	lo, hi = DefaultQualityMin, DefaultQualityMax
	if q.MinSet {
		lo = q.Min
		if !q.MaxSet && hi < lo {
			hi = lo
		}
	}
	if q.MaxSet {
		hi = q.Max
	}
	return lo, hi
}
