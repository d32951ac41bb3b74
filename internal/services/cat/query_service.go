package cat

import (
	"context"
	"time"

	"github.com/anoixa/catdex/cache"
	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/database/repo/cats"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ListLimit 列表页最多展示的记录数
const ListLimit = 100

// QueryService 列表与详情查询，详情走读穿透缓存
type QueryService struct {
	repo  cats.RepositoryInterface
	pool  *worker.Pool
	cache cache.Provider
	ttl   time.Duration
	group singleflight.Group
}

// NewQueryService 创建查询服务，cacheProvider 为 nil 时不使用缓存
func NewQueryService(repo cats.RepositoryInterface, pool *worker.Pool, cacheProvider cache.Provider, ttl time.Duration) *QueryService {
	if cacheProvider == nil {
		cacheProvider = cache.NoopCache{}
	}
	return &QueryService{
		repo:  repo,
		pool:  pool,
		cache: cacheProvider,
		ttl:   ttl,
	}
}

// ListCats 按插入顺序返回至多 ListLimit 条记录
func (s *QueryService) ListCats(ctx context.Context) ([]models.Cat, error) {
	var list []models.Cat
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.repo.ListCats(ctx, ListLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetCat 获取详情。记录写入后不会变化，所以命中缓存即可直接返回；
// 同一 id 的并发未命中只查询一次数据库。不存在的 id 不缓存。
// 调用方的 ctx 结束时立即返回 ctx 的错误，不影响其他等待同一查询的调用方。
func (s *QueryService) GetCat(ctx context.Context, id int64) (*models.Cat, error) {
	key := cache.CatDetail.BuildID(id)

	var cached models.Cat
	switch err := s.cache.Get(ctx, key, &cached); {
	case err == nil:
		return &cached, nil
	case !cache.IsCacheMiss(err):
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, falling back to database")
	}

	// 共享查询不随任何一个调用方取消，调用方各自按自己的 ctx 放弃等待
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		var found *models.Cat
		err := s.pool.Do(flightCtx, func(ctx context.Context) error {
			var err error
			found, err = s.repo.GetCatByID(ctx, id)
			return err
		})
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(flightCtx, key, found, s.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
		return *found, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := res.Val.(models.Cat)
		return &result, nil
	}
}
