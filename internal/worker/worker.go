package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var (
	// ErrPoolClosed 协程池已停止
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrTaskPanic 任务执行过程中发生 panic
	ErrTaskPanic = errors.New("worker task panicked")
)

// Do 任务的状态
const (
	taskPending int32 = iota
	taskStarted
	taskSkipped
)

// Pool 阻塞任务协程池，数据库与文件系统操作都在这里执行
type Pool struct {
	workers int
	queue   chan func()
	quit    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once

	submitted atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
}

// Stats 协程池统计
type Stats struct {
	Submitted   uint64 `json:"submitted"`
	Executed    uint64 `json:"executed"`
	Failed      uint64 `json:"failed"`
	Skipped     uint64 `json:"skipped"`
	WorkerCount int    `json:"worker_count"`
	QueueLen    int    `json:"queue_len"`
	QueueCap    int    `json:"queue_cap"`
}

// NewPool 创建并启动协程池
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	p := &Pool{
		workers: workers,
		queue:   make(chan func(), queueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	log.Info().Int("workers", workers).Int("queue", queueSize).Msg("Worker pool started")
	return p
}

// Stop 停止接收新任务，等待队列中已有的任务执行完毕
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.quit)
		p.mu.Unlock()

		p.wg.Wait()
		close(p.stopped)
		log.Info().Msg("Worker pool stopped")
	})
}

// Submit 提交任务（非阻塞，队列满或已停止时返回 false）
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	default:
		log.Warn().Msg("Worker pool queue is full, task dropped")
		return false
	}
}

// Do 在协程池中执行 fn 并等待结果。
// 排队期间 ctx 结束则跳过任务并返回 ctx 的错误；任务一旦开始就使用脱离取消的 ctx 执行到底。
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var state atomic.Int32
	done := make(chan error, 1)
	detached := context.WithoutCancel(ctx)

	task := func() {
		if !state.CompareAndSwap(taskPending, taskStarted) {
			p.skipped.Add(1)
			return
		}
		var err error
		if r := p.safeCall(func() { err = fn(detached) }); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
		done <- err
	}

	if err := p.enqueue(ctx, task); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(taskPending, taskSkipped) {
			return ctx.Err()
		}
		return <-done
	case <-p.stopped:
		if state.CompareAndSwap(taskPending, taskSkipped) {
			return ErrPoolClosed
		}
		return <-done
	}
}

// enqueue 阻塞入队，直到有空位、ctx 结束或协程池停止
func (p *Pool) enqueue(ctx context.Context, task func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		p.mu.RUnlock()
		p.submitted.Add(1)
		return nil
	default:
	}
	p.mu.RUnlock()

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// GetStats 获取统计信息
func (p *Pool) GetStats() Stats {
	return Stats{
		Submitted:   p.submitted.Load(),
		Executed:    p.executed.Load(),
		Failed:      p.failed.Load(),
		Skipped:     p.skipped.Load(),
		WorkerCount: p.workers,
		QueueLen:    len(p.queue),
		QueueCap:    cap(p.queue),
	}
}

// worker 工作协程，停止时先把队列清空再退出
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case task := <-p.queue:
			p.execute(task)
		case <-p.quit:
			for {
				select {
				case task := <-p.queue:
					p.execute(task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) execute(task func()) {
	if task == nil {
		return
	}
	p.executed.Add(1)
	p.safeCall(task)
}

// safeCall 执行任务并捕获 panic
func (p *Pool) safeCall(fn func()) (recovered any) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			recovered = r
			log.Error().Interface("panic", r).Msg("Panic recovered in worker task")
		}
	}()
	fn()
	return nil
}
