package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/esw-index/internal/cache"
	"github.com/any-hub/esw-index/internal/logging"
)

// ErrTimeout 表示 fallback 策略的网络请求未在超时前返回。
var ErrTimeout = errors.New("request timed out")

// detachedWriteTimeout 限制 cache-first 未命中后后台写入的最长耗时。
const detachedWriteTimeout = 30 * time.Second

// Engine 根据 Strategy 产出入口文档响应，并顺带保持当前代际缓存新鲜。
type Engine struct {
	opts     Options
	storage  cache.Storage
	fetcher  Fetcher
	logger   logrus.FieldLogger
	observer Observer

	entryURL  string
	cacheName string

	// pending 跟踪 cache-first 未命中时脱离请求的写入，Wait 用于关闭前排空。
	pending sync.WaitGroup
}

// NewEngine constructs the strategy engine. logger/observer may be nil.
func NewEngine(opts Options, storage cache.Storage, fetcher Fetcher, logger logrus.FieldLogger, observer Observer) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Engine{
		opts:      opts,
		storage:   storage,
		fetcher:   fetcher,
		logger:    logger,
		observer:  observer,
		entryURL:  opts.EntryDocumentURL(),
		cacheName: opts.CacheName(),
	}
}

// Respond 仅对 Classifier 已放行的请求调用。
func (e *Engine) Respond(ctx context.Context, req Request) (*cache.Response, error) {
	fr := FetchRequest{URL: e.entryURL, Credentials: req.Credentials()}
	if e.opts.Strategy == StrategyFallback {
		return e.fallback(ctx, fr)
	}
	return e.cacheFirst(ctx, fr)
}

// Wait 阻塞直到所有后台缓存写入完成。
func (e *Engine) Wait() {
	e.pending.Wait()
}

// cacheFirst 命中直接返回且不访问网络；未命中时回源，写缓存不阻塞响应。
// 回源失败不再降级，错误原样返回给调用方。
func (e *Engine) cacheFirst(ctx context.Context, fr FetchRequest) (*cache.Response, error) {
	started := time.Now()

	c, err := e.storage.Open(ctx, e.cacheName)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", e.cacheName, err)
	}

	cached, err := c.Match(ctx, e.entryURL)
	switch {
	case err == nil:
		e.observer.ObserveFetch(StrategyCacheFirst, OutcomeHit, time.Since(started))
		return cached, nil
	case errors.Is(err, cache.ErrNotFound):
		// miss, continue
	default:
		return nil, fmt.Errorf("match entry document: %w", err)
	}

	resp, err := e.fetcher.Fetch(ctx, fr)
	if err != nil {
		e.observer.ObserveFetch(StrategyCacheFirst, OutcomeNetworkError, time.Since(started))
		return nil, fmt.Errorf("fetch entry document: %w", err)
	}

	e.putDetached(c, resp.Clone())
	e.observer.ObserveFetch(StrategyCacheFirst, OutcomeMiss, time.Since(started))
	return resp, nil
}

// putDetached 启动不被响应路径等待的写入；并发未命中时以最后一次写入为准。
func (e *Engine) putDetached(c cache.Cache, resp *cache.Response) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), detachedWriteTimeout)
		defer cancel()
		if err := c.Put(ctx, e.entryURL, resp); err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"action": "cache_put",
				"cache":  e.cacheName,
				"key":    e.entryURL,
			}).Warn("cache_put_failed")
		}
	}()
}

type fetchResult struct {
	resp *cache.Response
	err  error
}

// fallback 让网络请求与计时器竞争：网络先返回则写缓存（同步等待）后返回；
// 超时或网络失败则走完整的 cache-first 流程（未命中时会再次回源）。
// 超时后仍在进行的网络请求不会被取消，只是被放弃，其结果不再影响本次响应。
func (e *Engine) fallback(ctx context.Context, fr FetchRequest) (*cache.Response, error) {
	started := time.Now()

	// 缓冲为 1，被放弃的请求完成后也能写入并退出。
	done := make(chan fetchResult, 1)
	raceCtx := context.WithoutCancel(ctx)
	go func() {
		resp, err := e.fetcher.Fetch(raceCtx, fr)
		done <- fetchResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(e.opts.Timeout)
	select {
	case r := <-done:
		timer.Stop()
		if r.err != nil {
			e.observer.ObserveFetch(StrategyFallback, OutcomeNetworkError, time.Since(started))
			e.logFallback(r.err)
			return e.cacheFirst(ctx, fr)
		}
		if err := e.store(ctx, r.resp.Clone()); err != nil {
			e.observer.ObserveFetch(StrategyFallback, OutcomeNetworkError, time.Since(started))
			e.logFallback(err)
			return e.cacheFirst(ctx, fr)
		}
		e.observer.ObserveFetch(StrategyFallback, OutcomeNetwork, time.Since(started))
		return r.resp, nil
	case <-timer.C:
		e.observer.ObserveFetch(StrategyFallback, OutcomeTimeout, time.Since(started))
		e.logFallback(ErrTimeout)
		return e.cacheFirst(ctx, fr)
	case <-ctx.Done():
		timer.Stop()
		return nil, ctx.Err()
	}
}

func (e *Engine) store(ctx context.Context, resp *cache.Response) error {
	c, err := e.storage.Open(ctx, e.cacheName)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", e.cacheName, err)
	}
	if err := c.Put(ctx, e.entryURL, resp); err != nil {
		return fmt.Errorf("store entry document: %w", err)
	}
	return nil
}

func (e *Engine) logFallback(err error) {
	e.logger.WithError(err).WithFields(logrus.Fields{
		"action":  "fetch",
		"mode":    string(StrategyFallback),
		"timeout": e.opts.Timeout.String(),
	}).Debug("fallback_to_cache_first")
}
