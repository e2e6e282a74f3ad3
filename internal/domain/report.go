package domain

import (
	"math"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

const (
	ErrCodeUnsupportedColorMode = "unsupported_color_mode"
	ErrCodeIOFailed             = "io_failed"
	ErrCodeDecodeFailed         = "decode_failed"
	ErrCodeQuantizeFailed       = "quantize_failed"
	ErrCodeEncodeFailed         = "encode_failed"
	ErrCodePanic                = "panic"
	ErrCodeCanceled             = "canceled"
	ErrCodeConfigInvalid        = "config_invalid"
)

// BytesPerKB 用于把字节换算为 KB。
const BytesPerKB = 1024.0

// RunReport 是对外稳定输出（stdout JSON / --report 文件）的结构。
type RunReport struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ElapsedSec float64   `json:"elapsed_sec"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Unhandled int `json:"unhandled"`
	Failed    int `json:"failed"`

	// 字节统计只计入 completed 条目。
	OriginalBytes int64   `json:"original_bytes"`
	FinalBytes    int64   `json:"final_bytes"`
	DecreasePct   float64 `json:"decrease_pct"`
}

type ItemResult struct {
	ID           int    `json:"id"`
	Path         string `json:"path"`
	Status       Status `json:"status"`
	OriginalSize int64  `json:"original_size"`
	FinalSize    int64  `json:"final_size"`
	ErrorCode    string `json:"error_code"`
	ErrorMsg     string `json:"error_msg"`
}

// ResultOf 把 WorkItem 投影为对外的 ItemResult。
func ResultOf(w WorkItem) ItemResult {
	return ItemResult{
		ID:           w.ID,
		Path:         w.RelPath,
		Status:       w.Status,
		OriginalSize: w.OriginalSize,
		FinalSize:    w.FinalSize,
		ErrorCode:    w.ErrorCode,
		ErrorMsg:     w.ErrorMsg,
	}
}

// Finalize 做三件事：
// 1) 时间统一为 UTC，并计算耗时（秒）
// 2) items 按 id 稳定排序
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if d := r.FinishedAt.Sub(r.StartedAt); d > 0 {
		r.ElapsedSec = d.Seconds()
	}

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].ID < r.Items[j].ID })

	s := ReportSummary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusCompleted:
			s.Processed++
			s.OriginalBytes += it.OriginalSize
			s.FinalBytes += it.FinalSize
		case StatusUnhandled:
			s.Unhandled++
		case StatusFailed:
			s.Failed++
		}
	}
	if s.OriginalBytes > 0 {
		pct := float64(s.OriginalBytes-s.FinalBytes) / float64(s.OriginalBytes) * 100
		s.DecreasePct = math.Round(pct*100) / 100
	}
	r.Summary = s
}

// OriginalKB / FinalKB 供摘要输出使用。
func (s ReportSummary) OriginalKB() float64 { return float64(s.OriginalBytes) / BytesPerKB }

func (s ReportSummary) FinalKB() float64 { return float64(s.FinalBytes) / BytesPerKB }

// MarshalJSON 集中约束输出的稳定性；编码交给 goccy/go-json。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
