package domain

// ProgressMsg 是 worker 侧发往调度器的进度消息。
//
// Value 是量化阶段的百分比 [0,100]；写入完成后为 ProgressCeiling。
// 仅用于界面反馈，从不用于判断完成。
type ProgressMsg struct {
	ID    int
	Value float64
}

// StatusMsg 是每个 WorkItem 恰好一条的终态消息，由 job 在返回前发送。
// 这是调度器退役条目的唯一依据。
type StatusMsg struct {
	ID      int
	Outcome Status

	OriginalSize int64
	FinalSize    int64

	ErrorCode string
	ErrorMsg  string
}
