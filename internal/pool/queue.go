package pool

import "sync"

// Signal 是队列里的一条消息：要么是一个 job，要么是一个 worker 的终止信号。
type Signal struct {
	Job       Job
	Terminate bool
}

// Queue 是 Pool 使用的任务队列。Push 永不阻塞；Pop 阻塞直到有消息可取。
type Queue interface {
	Push(m Signal)
	Pop() Signal
}

// fifoQueue 是无界 FIFO 队列。出队由一把互斥锁保护（所有 worker 共享），
// 只在取消息时竞争，不覆盖 job 执行过程。
type fifoQueue struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []Signal
}

func newFIFOQueue() *fifoQueue {
	q := &fifoQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *fifoQueue) Push(m Signal) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.ready.Signal()
}

func (q *fifoQueue) Pop() Signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.ready.Wait()
	}
	m := q.items[0]
	q.items[0] = Signal{} // 释放 job 闭包引用
	q.items = q.items[1:]
	return m
}
