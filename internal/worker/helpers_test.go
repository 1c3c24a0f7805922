package worker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/any-hub/esw-index/internal/cache"
	"github.com/any-hub/esw-index/internal/scope"
)

var errNetwork = errors.New("network down")

// stubFetcher 模拟入口文档上游，可配置延迟与前 N 次失败。
type stubFetcher struct {
	mu        sync.Mutex
	calls     int
	body      string
	delay     time.Duration
	failFirst int
	failAll   bool
	requests  []FetchRequest
}

func (s *stubFetcher) Fetch(ctx context.Context, req FetchRequest) (*cache.Response, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.requests = append(s.requests, req)
	delay, body := s.delay, s.body
	fail := s.failAll || call <= s.failFirst
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errNetwork
	}
	header := http.Header{}
	header.Set("Content-Type", "text/html")
	return &cache.Response{
		Status:   http.StatusOK,
		Header:   header,
		Body:     []byte(body),
		StoredAt: time.Now(),
	}, nil
}

func (s *stubFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubFetcher) setBody(body string) {
	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
}

func testOptions(t *testing.T) Options {
	t.Helper()
	origin, err := url.Parse("http://app.local")
	if err != nil {
		t.Fatalf("parse origin: %v", err)
	}
	return Options{
		Origin:            origin,
		EntryDocumentPath: "/index.html",
		Environment:       "production",
		Version:           "v1",
		Strategy:          StrategyCacheFirst,
		Timeout:           50 * time.Millisecond,
	}
}

func navigation(t *testing.T, raw string) Request {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml")
	return Request{Method: http.MethodGet, URL: u, Header: header}
}

func seedEntry(t *testing.T, storage cache.Storage, opts Options, body string) {
	t.Helper()
	ctx := context.Background()
	c, err := storage.Open(ctx, opts.CacheName())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	if err := c.Put(ctx, opts.EntryDocumentURL(), &cache.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/html"}},
		Body:   []byte(body),
	}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func cachedBody(t *testing.T, storage cache.Storage, opts Options) (string, bool) {
	t.Helper()
	ctx := context.Background()
	c, err := storage.Open(ctx, opts.CacheName())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	resp, err := c.Match(ctx, opts.EntryDocumentURL())
	if errors.Is(err, cache.ErrNotFound) {
		return "", false
	}
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	return string(resp.Body), true
}

func newTestWorker(t *testing.T, opts Options, storage cache.Storage, fetcher Fetcher) *Worker {
	t.Helper()
	w, err := New(opts, Dependencies{
		Storage: storage,
		Fetcher: fetcher,
		Matcher: scope.NewMatcher(),
	})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}
