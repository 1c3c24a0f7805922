package worker

import (
	"context"
	"fmt"

	"github.com/any-hub/esw-index/internal/cache"
)

// CleanupFunc 删除以 prefix 开头且不等于 current 的缓存。
type CleanupFunc func(ctx context.Context, prefix, current string) error

// Generations 负责代际命名与激活阶段的旧缓存回收。
type Generations struct {
	opts    Options
	cleanup CleanupFunc
}

// NewGenerations 使用 cache.Cleanup 作为默认回收实现；cleanup 非 nil 时优先使用。
func NewGenerations(opts Options, storage cache.Storage, cleanup CleanupFunc) *Generations {
	if cleanup == nil {
		cleanup = func(ctx context.Context, prefix, current string) error {
			return cache.Cleanup(ctx, storage, prefix, current)
		}
	}
	return &Generations{opts: opts, cleanup: cleanup}
}

// Current 返回当前代际的缓存名称。
func (g *Generations) Current() string {
	return g.opts.CacheName()
}

// Activate 删除所有旧代际缓存，直到回收结束才返回；任何删除失败都会返回错误。
func (g *Generations) Activate(ctx context.Context) error {
	if err := g.cleanup(ctx, CachePrefix, g.Current()); err != nil {
		return fmt.Errorf("cleanup generations: %w", err)
	}
	return nil
}
