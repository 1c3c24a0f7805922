package cache

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Cleanup 删除所有以 prefix 开头、但名称不等于 current 的缓存。
// 删除并发执行，任一失败都会作为返回值暴露给调用方。
func Cleanup(ctx context.Context, storage Storage, prefix, current string) error {
	names, err := storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		if name == current || !strings.HasPrefix(name, prefix+"-") {
			continue
		}
		g.Go(func() error {
			if err := storage.Delete(gctx, name); err != nil {
				return fmt.Errorf("delete cache %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
