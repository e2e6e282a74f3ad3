// Package pool 提供固定大小的 worker 池：多个长驻 goroutine 从同一个
// FIFO 队列里取 job 执行。
package pool

import (
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidSize 表示 worker 数量不是正数。
	ErrInvalidSize = errors.New("pool: size 必须大于 0")
	// ErrClosed 表示 Close 之后又提交了 job。
	ErrClosed = errors.New("pool: 已关闭")
)

// Job 是一个无参数、无返回值的工作单元。
//
// 约定：job 自己负责把失败转换为状态消息；逃逸出 job 的 panic 会被 worker
// 捕获并记录到 logger，worker 本身继续运行。
type Job func()

// Option 配置 Pool。
type Option func(*Pool)

// WithLogger 设置 logger；recover 到的 panic 会以 Error 级别记录。
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// Pool 是固定大小的 worker 池。队列由 Pool 独占，不存在包级全局状态。
type Pool struct {
	size  int
	queue Queue
	log   *zap.Logger

	mu     sync.Mutex
	closed bool

	workers errgroup.Group
}

// DefaultSize 返回检测到的硬件并行度。
func DefaultSize() int {
	return runtime.NumCPU()
}

// New 创建并启动 size 个 worker。size <= 0 时返回 ErrInvalidSize。
func New(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	p := &Pool{
		size:  size,
		queue: newFIFOQueue(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for id := 0; id < size; id++ {
		id := id
		p.workers.Go(func() error {
			p.work(id)
			return nil
		})
	}
	return p, nil
}

// Size 返回 worker 数量。
func (p *Pool) Size() int { return p.size }

// Submit 把 job 追加到队列尾部；队列无界，调用方永不阻塞。
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return errors.New("pool: job 不能为 nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue.Push(Signal{Job: job})
	return nil
}

// Close 为每个 worker 追加一个终止信号，并阻塞直到所有 worker 退出。
//
// 终止信号排在所有已提交 job 之后，而队列是 FIFO 的，所以 Close 之前
// 提交的每个 job 都会执行完毕。重复调用是安全的。
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for i := 0; i < p.size; i++ {
			p.queue.Push(Signal{Terminate: true})
		}
	}
	p.mu.Unlock()

	_ = p.workers.Wait()
}

func (p *Pool) work(id int) {
	for {
		m := p.queue.Pop()
		if m.Terminate {
			return
		}
		p.run(id, m.Job)
	}
}

func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panic recovered", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	job()
}
