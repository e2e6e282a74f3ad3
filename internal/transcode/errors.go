package transcode

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/pngslim/internal/codec"
	"github.com/John-Robertt/pngslim/internal/domain"
)

// Stage 标识转码流水线中出错的阶段。
type Stage string

const (
	StageRead     Stage = "read"
	StageDecode   Stage = "decode"
	StageQuantize Stage = "quantize"
	StageEncode   Stage = "encode"
	StageWrite    Stage = "write"
)

// ErrUnsupportedColorMode 用于 errors.Is 判断：输入不是 RGBA。
var ErrUnsupportedColorMode = errors.New("不支持的颜色模式")

// UnsupportedColorModeError 记录被拒绝输入的实际颜色模式；条目据此计为 unhandled。
type UnsupportedColorModeError struct {
	Mode codec.ColorMode
}

func (e *UnsupportedColorModeError) Error() string {
	return fmt.Sprintf("颜色模式为 %s，仅支持 rgba", e.Mode)
}

func (e *UnsupportedColorModeError) Is(target error) bool {
	return target == ErrUnsupportedColorMode
}

// StageError 包装某一阶段的失败；原文件在任何阶段失败时都保持不变。
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s 阶段失败：%v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Code 把转码错误映射为报告中的 error_code；nil 返回空串。
func Code(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnsupportedColorMode) {
		return domain.ErrCodeUnsupportedColorMode
	}
	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case StageDecode:
			return domain.ErrCodeDecodeFailed
		case StageQuantize:
			return domain.ErrCodeQuantizeFailed
		case StageEncode:
			return domain.ErrCodeEncodeFailed
		}
	}
	return domain.ErrCodeIOFailed
}

// Outcome 把错误映射为条目终态：颜色模式不支持为 unhandled，其余为 failed。
func Outcome(err error) domain.Status {
	switch {
	case err == nil:
		return domain.StatusCompleted
	case errors.Is(err, ErrUnsupportedColorMode):
		return domain.StatusUnhandled
	default:
		return domain.StatusFailed
	}
}
