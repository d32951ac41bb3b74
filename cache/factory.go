package cache

import (
	"fmt"
	"strings"

	"github.com/anoixa/catdex/config"
	"github.com/rs/zerolog/log"
)

// 缓存类型
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeNone   = "none"
)

// New 根据 cache_type 创建缓存
func New(cfg *config.Config) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.CacheType)) {
	case TypeMemory, "":
		provider, err = NewMemoryCache(MemoryConfig{MaxCost: cfg.CacheMaxCost})
	case TypeRedis:
		provider, err = NewRedisCache(RedisConfig{
			Address:  cfg.CacheRedisAddr,
			Password: cfg.CacheRedisPassword,
			DB:       cfg.CacheRedisDB,
			Prefix:   strings.ToLower(cfg.ProjectName) + ":",
		})
	case TypeNone:
		provider = NoopCache{}
	default:
		return nil, fmt.Errorf("unsupported cache type: %q", cfg.CacheType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cfg.CacheType, err)
	}

	log.Info().Str("cache", provider.Name()).Dur("ttl", cfg.CacheTTL).Msg("Cache initialized")
	return provider, nil
}
