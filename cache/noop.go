package cache

import (
	"context"
	"time"
)

// NoopCache cache_type=none 时使用，所有读取都未命中
type NoopCache struct{}

func (NoopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (NoopCache) Get(context.Context, string, interface{}) error              { return ErrCacheMiss }
func (NoopCache) Delete(context.Context, string) error                        { return nil }
func (NoopCache) Exists(context.Context, string) (bool, error)                { return false, nil }
func (NoopCache) Health(context.Context) error                                { return nil }
func (NoopCache) Close() error                                                { return nil }
func (NoopCache) Name() string                                                { return "none" }
