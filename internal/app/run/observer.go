package run

import (
	"time"

	"github.com/John-Robertt/pngslim/internal/config"
	"github.com/John-Robertt/pngslim/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 所有事件都在调度 goroutine 上同步调用，实现不需要额外加锁，但不应阻塞太久。
type Observer interface {
	// OnStart 在 Execute 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用：scan、plan、exec。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在某个条目进入终态时调用；done 为已进入终态的条目数。
	OnItemDone(done, total int, res domain.ItemResult)
	// OnProgress 在聚合进度变化时调用：weightDone / weightTotal 即整体完成比例。
	OnProgress(weightDone, weightTotal float64)
}

// nopObserver 让调度器内部不必到处判断 nil。
type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnItemDone(int, int, domain.ItemResult) {}
func (nopObserver) OnProgress(float64, float64) {}
