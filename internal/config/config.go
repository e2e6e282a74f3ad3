package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/John-Robertt/pngslim/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// FileName 是工作目录下可选配置文件的固定文件名。
	FileName = "pngslim.yaml"
	// MaxWorkers 是 workers 的上限。
	MaxWorkers = 256
)

// CLIArgs 保留“是否显式指定”的信息，保证 CLI 能覆盖配置文件中的任何值。
type CLIArgs struct {
	Path string

	Speed    int
	SpeedSet bool

	QualityMin    int
	QualityMinSet bool
	QualityMax    int
	QualityMaxSet bool

	DitheringLevel    float64
	DitheringLevelSet bool

	Compression    string
	CompressionSet bool

	// Exclude 与配置文件中的 exclude 取并集。
	Exclude []string

	Workers    int
	WorkersSet bool

	ReportPath string
	Verbose    bool
}

// FileConfig 对应 pngslim.yaml。指针字段用于区分“未填写”和零值。
type FileConfig struct {
	Path           string   `yaml:"path"`
	Speed          *int     `yaml:"speed"`
	QualityMin     *int     `yaml:"quality_min"`
	QualityMax     *int     `yaml:"quality_max"`
	DitheringLevel *float64 `yaml:"dithering_level"`
	Compression    string   `yaml:"compression"`
	Exclude        []string `yaml:"exclude"`
	Workers        int      `yaml:"workers"`
	Report         string   `yaml:"report"`
}

// EffectiveConfig 是合并并校验后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Speed          int
	Quality        domain.QualityBounds
	DitheringLevel float64
	Compression    domain.Compression

	Exclude    []string
	Workers    int
	ReportPath string
	Verbose    bool

	// ConfigFile 是实际读到的配置文件路径；未读到为空。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 提供 path：读取 <path>/pngslim.yaml（可选）
// 2) CLI 未提供 path：读取 <cwd>/pngslim.yaml（可选）；其中的 path 相对 cwd 解析，缺省为 cwd
//
// 覆盖优先级：CLI > 配置文件 > 内置默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, FileName)
		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		cfgPath = ""
	}
	absPath := cwdAbs
	if strings.TrimSpace(fc.Path) != "" {
		absPath = absCleanFrom(cwdAbs, fc.Path)
	}
	return merge(absPath, cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	speed := domain.DefaultSpeed
	if cli.SpeedSet {
		speed = cli.Speed
	} else if fc.Speed != nil {
		speed = *fc.Speed
	}
	if speed < 1 || speed > 10 {
		return invalid(fmt.Errorf("speed 必须在 1-10 之间，实际是 %d", speed))
	}

	var q domain.QualityBounds
	if cli.QualityMinSet {
		q.Min, q.MinSet = cli.QualityMin, true
	} else if fc.QualityMin != nil {
		q.Min, q.MinSet = *fc.QualityMin, true
	}
	if cli.QualityMaxSet {
		q.Max, q.MaxSet = cli.QualityMax, true
	} else if fc.QualityMax != nil {
		q.Max, q.MaxSet = *fc.QualityMax, true
	}
	if err := validateQuality(q); err != nil {
		return invalid(err)
	}

	dither := domain.DefaultDitheringLevel
	if cli.DitheringLevelSet {
		dither = cli.DitheringLevel
	} else if fc.DitheringLevel != nil {
		dither = *fc.DitheringLevel
	}
	if math.IsNaN(dither) || dither < 0 || dither > 1 {
		return invalid(fmt.Errorf("dithering-level 必须在 0-1 之间，实际是 %v", dither))
	}

	compRaw := string(domain.CompressionDefault)
	if cli.CompressionSet {
		compRaw = cli.Compression
	} else if strings.TrimSpace(fc.Compression) != "" {
		compRaw = strings.TrimSpace(fc.Compression)
	}
	comp, err := domain.ParseCompression(compRaw)
	if err != nil {
		return invalid(err)
	}

	workers := defaultWorkers()
	if cli.WorkersSet {
		workers = cli.Workers
	} else if fc.Workers != 0 {
		workers = fc.Workers
	}
	if workers < 1 || workers > MaxWorkers {
		return invalid(fmt.Errorf("workers 必须在 1-%d 之间，实际是 %d", MaxWorkers, workers))
	}

	report := strings.TrimSpace(cli.ReportPath)
	if report == "" {
		report = strings.TrimSpace(fc.Report)
	}

	return EffectiveConfig{
		Path:           absPath,
		Speed:          speed,
		Quality:        q,
		DitheringLevel: dither,
		Compression:    comp,
		Exclude:        normalizeExclude(fc.Exclude, cli.Exclude),
		Workers:        workers,
		ReportPath:     report,
		Verbose:        cli.Verbose,
		ConfigFile:     cfgPath,
	}, nil
}

func validateQuality(q domain.QualityBounds) error {
	if q.MinSet && (q.Min < 0 || q.Min > 100) {
		return fmt.Errorf("quality-min 必须在 0-100 之间，实际是 %d", q.Min)
	}
	if q.MaxSet && (q.Max < 0 || q.Max > 100) {
		return fmt.Errorf("quality-max 必须在 0-100 之间，实际是 %d", q.Max)
	}
	if lo, hi := q.Resolve(); lo > hi {
		return fmt.Errorf("quality-min(%d) 不能大于 quality-max(%d)", lo, hi)
	}
	return nil
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// normalizeExclude 合并排除列表：逐项 TrimSpace、去空、去重，保持首次出现顺序。
func normalizeExclude(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 8)
	for _, l := range lists {
		for _, s := range l {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
