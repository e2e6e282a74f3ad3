package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want zapcore.Level
	}{
		{"verbose", Options{Verbose: true}, zapcore.DebugLevel},
		{"verbose_wins", Options{Verbose: true, Interactive: true}, zapcore.DebugLevel},
		{"interactive", Options{Interactive: true}, zapcore.ErrorLevel},
		{"default", Options{}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.opts)
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			defer func() { _ = l.Sync() }()

			if !l.Core().Enabled(tt.want) {
				t.Fatalf("级别 %s 应启用", tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Fatalf("级别 %s 不应启用", tt.want-1)
			}
		})
	}
}
