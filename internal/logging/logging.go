// Package logging 构造全局使用的 zap.Logger。日志只写 stderr，stdout 留给 RunReport JSON。
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Verbose 打开 Debug 级别（开发格式）。
	Verbose bool
	// Interactive 表示 stderr 正在显示进度条：只输出 Error 及以上。
	// 条目级失败由进度条上方的 FAIL 行展示，不再重复打 Warn 日志。
	Interactive bool
}

// New 按选项构造 logger：
// - Verbose：开发格式 + Debug
// - Interactive：开发格式 + Error
// - 其他：生产格式（JSON）+ Info
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch {
	case opts.Verbose:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case opts.Interactive:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		cfg.DisableStacktrace = true
	default:
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
