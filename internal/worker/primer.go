package worker

import (
	"context"
	"fmt"

	"github.com/any-hub/esw-index/internal/cache"
)

// Primer 在安装阶段拉取入口文档并写入当前代际缓存。
type Primer struct {
	opts    Options
	storage cache.Storage
	fetcher Fetcher
}

// NewPrimer constructs a Primer sharing the worker's storage and fetcher.
func NewPrimer(opts Options, storage cache.Storage, fetcher Fetcher) *Primer {
	return &Primer{opts: opts, storage: storage, fetcher: fetcher}
}

// Install 回源失败时直接返回错误，不写入任何缓存。
func (p *Primer) Install(ctx context.Context) error {
	key := p.opts.EntryDocumentURL()
	resp, err := p.fetcher.Fetch(ctx, FetchRequest{URL: key})
	if err != nil {
		return fmt.Errorf("fetch entry document: %w", err)
	}

	c, err := p.storage.Open(ctx, p.opts.CacheName())
	if err != nil {
		return fmt.Errorf("open cache %s: %w", p.opts.CacheName(), err)
	}
	if err := c.Put(ctx, key, resp); err != nil {
		return fmt.Errorf("prime entry document: %w", err)
	}
	return nil
}
