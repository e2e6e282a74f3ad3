package run

import (
	"context"
	"fmt"
	"time"

	"github.com/John-Robertt/pngslim/internal/app/planner"
	"github.com/John-Robertt/pngslim/internal/config"
	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/John-Robertt/pngslim/internal/scan"
	"github.com/John-Robertt/pngslim/internal/transcode"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParamsOf 从最终配置中取出转码参数。
func ParamsOf(eff config.EffectiveConfig) transcode.Params {
	return transcode.Params{
		Speed:          eff.Speed,
		Quality:        eff.Quality,
		DitheringLevel: eff.DitheringLevel,
		Compression:    eff.Compression,
	}
}

// Execute 执行一次完整运行：scan → plan → exec，并返回 RunReport。
//
// 单个文件的失败会被降级为条目级结果；只有扫描失败这类无法继续的错误才作为 error 返回
// （此时报告中没有条目）。
func Execute(ctx context.Context, eff config.EffectiveConfig, logger *zap.Logger, obs Observer) (domain.RunReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if obs == nil {
		obs = nopObserver{}
	}

	runID := uuid.NewString()
	log := logger.With(zap.String("run_id", runID))
	started := time.Now().UTC()
	obs.OnStart(eff)

	failed := func(err error) (domain.RunReport, error) {
		rr := domain.RunReport{
			RunID:      runID,
			Path:       eff.Path,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
			Items:      []domain.ItemResult{},
		}
		rr.Finalize()
		return rr, err
	}

	scanStarted := time.Now()
	files, err := scan.ScanPNGs(eff.Path, eff.Exclude)
	if err != nil {
		log.Error("扫描失败", zap.String("path", eff.Path), zap.Error(err))
		return failed(fmt.Errorf("扫描 %q 失败：%w", eff.Path, err))
	}
	obs.OnPhaseDone("scan", map[string]any{
		"files":    len(files),
		"excluded": len(eff.Exclude),
	}, time.Since(scanStarted))
	log.Info("扫描完成", zap.String("path", eff.Path), zap.Int("files", len(files)))

	planStarted := time.Now()
	wl := planner.GenerateWorklist(files)
	st := planner.Summarize(files)
	obs.OnPhaseDone("plan", map[string]any{
		"items":       st.Items,
		"total_bytes": st.TotalBytes,
	}, time.Since(planStarted))

	sched, err := NewScheduler(wl, Options{
		Workers:  eff.Workers,
		Params:   ParamsOf(eff),
		Logger:   log,
		Observer: obs,
		RunID:    runID,
		Root:     eff.Path,
	})
	if err != nil {
		log.Error("初始化调度器失败", zap.Error(err))
		return failed(fmt.Errorf("初始化调度器失败：%w", err))
	}
	obs.OnPhaseDone("exec", map[string]any{
		"workers":     sched.pool.Size(),
		"total_items": wl.Len(),
	}, 0)

	rr := sched.Run(ctx)
	rr.StartedAt = started
	rr.Finalize()

	log.Info("运行结束",
		zap.Int("processed", rr.Summary.Processed),
		zap.Int("unhandled", rr.Summary.Unhandled),
		zap.Int("failed", rr.Summary.Failed),
		zap.Float64("elapsed_sec", rr.ElapsedSec),
	)
	return rr, nil
}
