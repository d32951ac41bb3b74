package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPanicRecovery 测试 Panic Recovery 功能
func TestPanicRecovery(t *testing.T) {
	pool := NewPool(2, 10)

	var completed int32
	pool.Submit(func() { panic("intentional panic for testing") })
	pool.Submit(func() { panic("intentional panic for testing") })
	for i := 0; i < 3; i++ {
		pool.Submit(func() { atomic.AddInt32(&completed, 1) })
	}

	// Stop 会等待队列清空
	pool.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&completed))
	stats := pool.GetStats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(5), stats.Executed)
}

// TestGracefulShutdown 测试优雅关闭会等待执行中的任务
func TestGracefulShutdown(t *testing.T) {
	pool := NewPool(2, 10)

	var completed int32
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		time.Sleep(300 * time.Millisecond)
		atomic.AddInt32(&completed, 1)
	})
	<-started

	begin := time.Now()
	pool.Stop()

	assert.GreaterOrEqual(t, time.Since(begin), 250*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&completed))
}

// TestQueueFullDropPolicy 测试队列满时的丢弃策略
func TestQueueFullDropPolicy(t *testing.T) {
	pool := NewPool(1, 2)
	defer pool.Stop()

	blocker := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.Submit(func() {
		close(started)
		<-blocker
	}))
	<-started

	assert.True(t, pool.Submit(func() {}))
	assert.True(t, pool.Submit(func() {}))
	assert.False(t, pool.Submit(func() {}), "queue is full")

	close(blocker)
}

// TestConcurrentSubmit 测试并发提交
func TestConcurrentSubmit(t *testing.T) {
	pool := NewPool(4, 2000)

	const goroutines = 50
	const perGoroutine = 20

	var completed int32
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				pool.Submit(func() { atomic.AddInt32(&completed, 1) })
			}
		}()
	}
	wg.Wait()
	pool.Stop()

	assert.Equal(t, int32(goroutines*perGoroutine), atomic.LoadInt32(&completed))
	assert.Equal(t, uint64(goroutines*perGoroutine), pool.GetStats().Submitted)
}

// TestSubmitAfterStop 测试停止后提交任务
func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Stop()

	assert.False(t, pool.Submit(func() {}))
	assert.ErrorIs(t, pool.Do(context.Background(), func(context.Context) error { return nil }), ErrPoolClosed)
}

// TestDoubleStop 测试重复停止
func TestDoubleStop(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Stop()
	assert.NotPanics(t, pool.Stop)
}

// TestSubmitNilTask nil 任务入队但不会被执行
func TestSubmitNilTask(t *testing.T) {
	pool := NewPool(2, 10)

	assert.True(t, pool.Submit(nil))
	pool.Stop()

	stats := pool.GetStats()
	assert.Equal(t, uint64(1), stats.Submitted)
	assert.Equal(t, uint64(0), stats.Executed)
}

// TestDefaultPoolConfig 测试默认配置
func TestDefaultPoolConfig(t *testing.T) {
	pool := NewPool(0, 0)
	defer pool.Stop()

	stats := pool.GetStats()
	assert.Greater(t, stats.WorkerCount, 0)
	assert.Equal(t, 1000, stats.QueueCap)
}

// TestDo_ReturnsResult Do 返回任务的结果
func TestDo_ReturnsResult(t *testing.T) {
	pool := NewPool(2, 10)
	defer pool.Stop()

	var got int
	err := pool.Do(context.Background(), func(context.Context) error {
		got = 42
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	boom := errors.New("boom")
	err = pool.Do(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// TestDo_Panic 任务 panic 转换为错误
func TestDo_Panic(t *testing.T) {
	pool := NewPool(1, 10)
	defer pool.Stop()

	err := pool.Do(context.Background(), func(context.Context) error { panic("kaboom") })
	assert.ErrorIs(t, err, ErrTaskPanic)
	assert.Equal(t, uint64(1), pool.GetStats().Failed)

	// worker 仍然可用
	assert.NoError(t, pool.Do(context.Background(), func(context.Context) error { return nil }))
}

// TestDo_CanceledBeforeSubmit 已取消的 ctx 不会提交任务
func TestDo_CanceledBeforeSubmit(t *testing.T) {
	pool := NewPool(1, 10)
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := pool.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
	assert.Equal(t, uint64(0), pool.GetStats().Submitted)
}

// TestDo_SkippedWhileQueued 排队期间取消的任务被跳过
func TestDo_SkippedWhileQueued(t *testing.T) {
	pool := NewPool(1, 10)

	blocker := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.Submit(func() {
		close(started)
		<-blocker
	}))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- pool.Do(ctx, func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return pool.GetStats().QueueLen == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-result, context.Canceled)

	close(blocker)
	pool.Stop()

	assert.False(t, ran.Load())
	assert.Equal(t, uint64(1), pool.GetStats().Skipped)
}

// TestDo_StartedTaskRunsToCompletion 已开始的任务不受调用方取消影响
func TestDo_StartedTaskRunsToCompletion(t *testing.T) {
	pool := NewPool(1, 10)
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})

	var taskCtxErr error
	result := make(chan error, 1)
	go func() {
		result <- pool.Do(ctx, func(taskCtx context.Context) error {
			close(started)
			<-release
			taskCtxErr = taskCtx.Err()
			return nil
		})
	}()

	<-started
	cancel()
	close(release)

	assert.NoError(t, <-result)
	assert.NoError(t, taskCtxErr)
}
