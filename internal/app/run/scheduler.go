package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/John-Robertt/pngslim/internal/pool"
	"github.com/John-Robertt/pngslim/internal/transcode"
	"go.uber.org/zap"
)

// progressBuffer 是每个 worker 在不阻塞的情况下可以积压的进度消息数。
const progressBuffer = 64

// Options 配置 Scheduler。零值字段使用默认值。
type Options struct {
	// Workers 为 0 时使用 pool.DefaultSize()。
	Workers int
	Params  transcode.Params
	// Transcode 为 nil 时使用 transcode.Transcode。
	Transcode transcode.Func
	Logger    *zap.Logger
	Observer  Observer

	// RunID 与 Root 只写入报告。
	RunID string
	Root  string
}

// Scheduler 独占 Worklist 与 worker 池：提交 job、消费状态/进度消息、维护条目状态。
//
// 约束：
// - 只有调度 goroutine（调用 Run 的 goroutine）修改 Worklist
// - 每个 job 恰好发送一条 StatusMsg（包括 panic 与取消）
// - Run 只能调用一次
type Scheduler struct {
	wl   domain.Worklist
	opts Options
	log  *zap.Logger
	obs  Observer
	pool *pool.Pool

	status   chan domain.StatusMsg
	progress chan domain.ProgressMsg
}

// NewScheduler 创建调度器。Worklist 中的条目必须全部处于 init 状态。
func NewScheduler(wl domain.Worklist, opts Options) (*Scheduler, error) {
	for i := range wl {
		if wl[i].ID != i {
			return nil, fmt.Errorf("条目 ID 与下标不一致：index=%d id=%d", i, wl[i].ID)
		}
		if wl[i].Status != domain.StatusInit {
			return nil, fmt.Errorf("条目 %d 状态为 %s，期望 init", i, wl[i].Status)
		}
	}

	if opts.Workers == 0 {
		opts.Workers = pool.DefaultSize()
	}
	if opts.Transcode == nil {
		opts.Transcode = transcode.Transcode
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var obs Observer = nopObserver{}
	if opts.Observer != nil {
		obs = opts.Observer
	}

	p, err := pool.New(opts.Workers, pool.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		wl:       wl,
		opts:     opts,
		log:      log,
		obs:      obs,
		pool:     p,
		status:   make(chan domain.StatusMsg, len(wl)),
		progress: make(chan domain.ProgressMsg, p.Size()*progressBuffer),
	}, nil
}

// Worklist 返回调度器持有的条目（Run 返回后读取才是稳定的）。
func (s *Scheduler) Worklist() domain.Worklist { return s.wl }

// Run 提交全部条目并阻塞到所有条目进入终态，然后关闭 worker 池并生成报告。
//
// ctx 取消后，尚未开始的 job 以 failed/canceled 结束；已开始的 job 正常完成。
func (s *Scheduler) Run(ctx context.Context) domain.RunReport {
	rr := domain.RunReport{
		RunID:     s.opts.RunID,
		Path:      s.opts.Root,
		StartedAt: time.Now().UTC(),
	}
	total := s.wl.Len()

	completed := 0
	for i := range s.wl {
		it := &s.wl[i]
		if err := it.Advance(domain.StatusWaiting); err != nil {
			// NewScheduler 已保证全部为 init，这里只可能是重复调用 Run。
			s.log.Error("条目无法进入 waiting", zap.Int("id", it.ID), zap.Error(err))
			completed++
			continue
		}
		if err := s.pool.Submit(s.newJob(ctx, it.ID, it.Path)); err != nil {
			s.log.Error("提交 job 失败", zap.Int("id", it.ID), zap.Error(err))
			s.status <- domain.StatusMsg{
				ID:        it.ID,
				Outcome:   domain.StatusFailed,
				ErrorCode: domain.ErrCodeIOFailed,
				ErrorMsg:  fmt.Sprintf("提交 job 失败：%v", err),
			}
		}
	}

	for completed < total {
		select {
		case m := <-s.status:
			if s.applyStatus(m) {
				completed++
				s.obs.OnItemDone(completed, total, domain.ResultOf(*s.wl.Item(m.ID)))
				s.obs.OnProgress(s.wl.WeightDone(), s.wl.WeightTotal())
			}
		case m := <-s.progress:
			if s.applyProgress(m) {
				s.obs.OnProgress(s.wl.WeightDone(), s.wl.WeightTotal())
			}
		}
	}

	s.pool.Close()
	s.log.Debug("全部条目进入终态",
		zap.Int("completed", s.wl.Count(domain.StatusCompleted)),
		zap.Int("unhandled", s.wl.Count(domain.StatusUnhandled)),
		zap.Int("failed", s.wl.Count(domain.StatusFailed)),
	)

	rr.FinishedAt = time.Now().UTC()
	rr.Items = make([]domain.ItemResult, 0, total)
	for i := range s.wl {
		rr.Items = append(rr.Items, domain.ResultOf(s.wl[i]))
	}
	rr.Finalize()
	return rr
}

// applyStatus 把条目推进到终态；返回 false 表示消息被忽略（未知 ID 或重复终态）。
func (s *Scheduler) applyStatus(m domain.StatusMsg) bool {
	it := s.wl.Item(m.ID)
	if it == nil || it.Status.Terminal() {
		s.log.Warn("忽略无效的状态消息", zap.Int("id", m.ID), zap.String("status", string(m.Outcome)))
		return false
	}

	outcome := m.Outcome
	if !outcome.Terminal() {
		outcome = domain.StatusFailed
	}
	it.Progress = domain.ProgressCeiling
	if err := it.Advance(outcome); err != nil {
		s.log.Error("状态迁移失败", zap.Int("id", it.ID), zap.Error(err))
		it.Status = domain.StatusFailed
	}

	switch it.Status {
	case domain.StatusCompleted:
		it.OriginalSize = m.OriginalSize
		it.FinalSize = m.FinalSize
		s.log.Debug("条目完成",
			zap.Int("id", it.ID),
			zap.String("path", it.RelPath),
			zap.Int64("original_size", it.OriginalSize),
			zap.Int64("final_size", it.FinalSize),
		)
	case domain.StatusUnhandled:
		it.ErrorCode, it.ErrorMsg = m.ErrorCode, m.ErrorMsg
		s.log.Debug("条目跳过", zap.Int("id", it.ID), zap.String("path", it.RelPath), zap.String("error", it.ErrorMsg))
	default:
		it.ErrorCode, it.ErrorMsg = m.ErrorCode, m.ErrorMsg
		if it.ErrorCode == "" {
			it.ErrorCode = domain.ErrCodeIOFailed
		}
		s.log.Warn("条目失败",
			zap.Int("id", it.ID),
			zap.String("path", it.RelPath),
			zap.String("status", string(it.Status)),
			zap.String("error_code", it.ErrorCode),
			zap.String("error", it.ErrorMsg),
		)
	}
	return true
}

// applyProgress 更新单条进度；终态条目的进度消息被忽略。
func (s *Scheduler) applyProgress(m domain.ProgressMsg) bool {
	it := s.wl.Item(m.ID)
	if it == nil || it.Status.Terminal() {
		return false
	}
	before := it.Progress
	it.SetProgress(m.Value)
	return it.Progress != before
}

// newJob 构造提交给池的闭包。id/path/params 与 channel 句柄按值捕获，job 不接触 Worklist。
func (s *Scheduler) newJob(ctx context.Context, id int, path string) pool.Job {
	params := s.opts.Params
	fn := s.opts.Transcode
	log := s.log
	var status chan<- domain.StatusMsg = s.status
	var progress chan<- domain.ProgressMsg = s.progress

	return func() {
		msg := domain.StatusMsg{ID: id, Outcome: domain.StatusFailed, ErrorCode: domain.ErrCodeIOFailed}
		defer func() {
			if r := recover(); r != nil {
				log.Error("转码 panic", zap.Int("id", id), zap.String("path", path), zap.Any("panic", r), zap.Stack("stack"))
				msg = domain.StatusMsg{
					ID:        id,
					Outcome:   domain.StatusFailed,
					ErrorCode: domain.ErrCodePanic,
					ErrorMsg:  fmt.Sprintf("panic: %v", r),
				}
			}
			status <- msg
		}()

		if err := ctx.Err(); err != nil {
			msg.ErrorCode = domain.ErrCodeCanceled
			msg.ErrorMsg = canceledMsg(err)
			return
		}

		res, err := fn(path, params, func(v float64) {
			progress <- domain.ProgressMsg{ID: id, Value: v}
		})
		msg = statusOf(id, res, err)
	}
}

func statusOf(id int, res transcode.Result, err error) domain.StatusMsg {
	m := domain.StatusMsg{ID: id, Outcome: transcode.Outcome(err)}
	if err != nil {
		m.ErrorCode = transcode.Code(err)
		m.ErrorMsg = err.Error()
		return m
	}
	m.OriginalSize = res.OriginalSize
	m.FinalSize = res.FinalSize
	return m
}

func canceledMsg(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "已超时，未开始处理"
	}
	return "已取消，未开始处理"
}
