package cat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/anoixa/catdex/cache"
	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCats_CappedAndOrdered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewQueryService(env.count, env.pool, nil, time.Minute)

	empty, err := svc.ListCats(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 0; i < ListLimit+5; i++ {
		_, err := env.repo.InsertCat(ctx, models.NewCat{Name: fmt.Sprintf("cat-%03d", i), ImagePath: "static/images/x.png"})
		require.NoError(t, err)
	}

	list, err := svc.ListCats(ctx)
	require.NoError(t, err)
	require.Len(t, list, ListLimit)
	assert.Equal(t, "cat-000", list[0].Name)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestGetCat_ReadThroughCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	memory, err := cache.NewMemoryCache(cache.MemoryConfig{MaxCost: 100})
	require.NoError(t, err)
	defer memory.Close()

	svc := NewQueryService(env.count, env.pool, memory, time.Minute)

	created, err := env.repo.InsertCat(ctx, models.NewCat{Name: "Whiskers", ImagePath: "static/images/whiskers.png"})
	require.NoError(t, err)

	first, err := svc.GetCat(ctx, created.ID)
	require.NoError(t, err)
	second, err := svc.GetCat(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, *created, *first)
	assert.Equal(t, *created, *second)
	assert.Equal(t, int32(1), env.count.gets.Load(), "second lookup is served from cache")
}

func TestGetCat_NotFoundIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	memory, err := cache.NewMemoryCache(cache.MemoryConfig{MaxCost: 100})
	require.NoError(t, err)
	defer memory.Close()

	svc := NewQueryService(env.count, env.pool, memory, time.Minute)

	_, err = svc.GetCat(ctx, 999999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.GetCat(ctx, 999999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, int32(2), env.count.gets.Load())

	exists, err := memory.Exists(ctx, cache.CatDetail.BuildID(int64(999999)))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetCat_WithoutCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewQueryService(env.count, env.pool, cache.NoopCache{}, time.Minute)

	created, err := env.repo.InsertCat(ctx, models.NewCat{Name: "Tom", ImagePath: "static/images/tom.png"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := svc.GetCat(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Tom", got.Name)
	}
	assert.Equal(t, int32(3), env.count.gets.Load())
}

// 一个调用方取消不会让等待同一查询的其他调用方失败
func TestGetCat_CancelledCallerDoesNotFailOthers(t *testing.T) {
	env := newTestEnv(t)
	pool := worker.NewPool(1, 8)
	t.Cleanup(pool.Stop)
	svc := NewQueryService(env.count, pool, nil, time.Minute)

	created, err := env.repo.InsertCat(context.Background(), models.NewCat{Name: "Whiskers", ImagePath: "static/images/whiskers.png"})
	require.NoError(t, err)

	// 占住唯一的 worker，让详情查询停在队列里
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.GetCat(ctxA, created.ID)
		errA <- err
	}()
	require.Eventually(t, func() bool { return pool.GetStats().QueueLen == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		cat *models.Cat
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		c, err := svc.GetCat(context.Background(), created.ID)
		resB <- outcome{c, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	select {
	case out := <-resB:
		require.NoError(t, out.err)
		assert.Equal(t, "Whiskers", out.cat.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
	assert.Equal(t, int32(1), env.count.gets.Load())
}
