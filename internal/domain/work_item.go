package domain

import "fmt"

// Status 是 WorkItem 的状态。状态只能单调前进：
//
//	init -> waiting -> completed | unhandled | failed
type Status string

const (
	StatusInit      Status = "init"
	StatusWaiting   Status = "waiting"
	StatusCompleted Status = "completed"
	StatusUnhandled Status = "unhandled"
	StatusFailed    Status = "failed"
)

const (
	// QuantizePhaseWeight 是量化阶段占单个文件进度的权重（百分比）。
	QuantizePhaseWeight = 100.0
	// WritePhaseWeight 是写文件阶段的权重：保存文件约占总进度的 10%。
	WritePhaseWeight = 10.0
	// ProgressCeiling 是单个文件的进度上限（量化 + 写入 = 110）。
	ProgressCeiling = QuantizePhaseWeight + WritePhaseWeight
)

// Terminal 表示该状态是否为终态。
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusUnhandled, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) rank() int {
	switch s {
	case StatusInit:
		return 0
	case StatusWaiting:
		return 1
	case StatusCompleted, StatusUnhandled, StatusFailed:
		return 2
	default:
		return -1
	}
}

// WorkItem 是一个被发现的 PNG 文件对应的工作单元。
//
// 约束：
// - ID 在发现阶段分配（从 0 递增），作为跨 goroutine 的关联键，永不复用
// - WorkItem 只由调度 goroutine 修改；job 只持有提交时拷贝的不可变字段
type WorkItem struct {
	ID      int
	Path    string
	RelPath string

	Status   Status
	Progress float64

	// 仅在 completed 时填充。
	OriginalSize int64
	FinalSize    int64

	// 仅在 unhandled/failed 时填充。
	ErrorCode string
	ErrorMsg  string
}

// TransitionError 表示一次非法（非单调）的状态迁移。
type TransitionError struct {
	ID   int
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %d：非法状态迁移 %s -> %s", e.ID, e.From, e.To)
}

// Advance 把状态推进到 next；任何回退、原地踏步或终态之间的跳转都会被拒绝。
func (w *WorkItem) Advance(next Status) error {
	from, to := w.Status.rank(), next.rank()
	if from < 0 || to < 0 || to != from+1 {
		return &TransitionError{ID: w.ID, From: w.Status, To: next}
	}
	w.Status = next
	return nil
}

// SetProgress 更新进度：只增不减，并截断到 [0, ProgressCeiling]。
// 终态条目的进度不再变化。
func (w *WorkItem) SetProgress(v float64) {
	if w.Status.Terminal() {
		return
	}
	if v > ProgressCeiling {
		v = ProgressCeiling
	}
	if v > w.Progress {
		w.Progress = v
	}
}
