package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/any-hub/esw-index/internal/cache"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingObserver) ObserveFetch(_ Strategy, outcome Outcome, _ time.Duration) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func (r *recordingObserver) snapshot() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func TestCacheFirstMissFetchesAndPopulates(t *testing.T) {
	opts := testOptions(t)
	storage := cache.NewMemoryStorage()
	fetcher := &stubFetcher{body: "<html>fresh</html>"}
	engine := NewEngine(opts, storage, fetcher, nil, nil)

	resp, err := engine.Respond(context.Background(), navigation(t, "http://app.local/"))
	if err != nil {
		t.Fatalf("respond error: %v", err)
	}
	if string(resp.Body) != "<html>fresh</html>" {
		t.Fatalf("unexpected body %s", string(resp.Body))
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("expected single network fetch, got %d", fetcher.Calls())
	}

	engine.Wait()
	body, ok := cachedBody(t, storage, opts)
	if !ok || body != "<html>fresh</html>" {
		t.Fatalf("cache should hold fetched entry, got %q (found=%v)", body, ok)
	}
}

func TestCacheFirstHitSkipsNetwork(t *testing.T) {
	opts := testOptions(t)
	storage := cache.NewMemoryStorage()
	seedEntry(t, storage, opts, "<html>D</html>")
	fetcher := &stubFetcher{body: "<html>network</html>"}
	engine := NewEngine(opts, storage, fetcher, nil, nil)

	resp, err := engine.Respond(context.Background(), navigation(t, "http://app.local/any"))
	if err != nil {
		t.Fatalf("respond error: %v", err)
	}
	if string(resp.Body) != "<html>D</html>" {
		t.Fatalf("expected cached document, got %s", string(resp.Body))
	}
	if fetcher.Calls() != 0 {
		t.Fatalf("cache hit must not touch network, got %d calls", fetcher.Calls())
	}
}

func TestCacheFirstHitsAreIdempotent(t *testing.T) {
	opts := testOptions(t)
	storage := cache.NewMemoryStorage()
	seedEntry(t, storage, opts, "<html>stable</html>")
	engine := NewEngine(opts, storage, &stubFetcher{}, nil, nil)

	var first []byte
	for i := 0; i < 5; i++ {
		resp, err := engine.Respond(context.Background(), navigation(t, "http://app.local/"))
		if err != nil {
			t.Fatalf("respond error: %v", err)
		}
		if i == 0 {
			first = resp.Body
			continue
		}
		if !bytes.Equal(first, resp.Body) {
			t.Fatalf("hit %d returned different content", i)
		}
	}
}

func TestCacheFirstMissWithNetworkFailurePropagates(t *testing.T) {
	opts := testOptions(t)
	engine := NewEngine(opts, cache.NewMemoryStorage(), &stubFetcher{failAll: true}, nil, nil)

	_, err := engine.Respond(context.Background(), navigation(t, "http://app.local/"))
	if !errors.Is(err, errNetwork) {
		t.Fatalf("expected network error to propagate, got %v", err)
	}
}

func TestCacheFirstForwardsCredentials(t *testing.T) {
	opts := testOptions(t)
	fetcher := &stubFetcher{body: "x"}
	engine := NewEngine(opts, cache.NewMemoryStorage(), fetcher, nil, nil)

	req := navigation(t, "http://app.local/")
	req.Header.Set("Cookie", "session=abc")
	req.Header.Set("Authorization", "Bearer t")
	req.Header.Set("X-Other", "ignored")
	if _, err := engine.Respond(context.Background(), req); err != nil {
		t.Fatalf("respond error: %v", err)
	}
	engine.Wait()

	got := fetcher.requests[0]
	if got.URL != "http://app.local/index.html" {
		t.Fatalf("unexpected fetch url %s", got.URL)
	}
	if got.Credentials.Get("Cookie") != "session=abc" || got.Credentials.Get("Authorization") != "Bearer t" {
		t.Fatalf("credentials not forwarded: %v", got.Credentials)
	}
	if got.Credentials.Get("X-Other") != "" {
		t.Fatalf("non credential header leaked: %v", got.Credentials)
	}
}

func TestFallbackNetworkWinsUpdatesCache(t *testing.T) {
	opts := testOptions(t)
	opts.Strategy = StrategyFallback
	opts.Timeout = 50 * time.Millisecond
	storage := cache.NewMemoryStorage()
	seedEntry(t, storage, opts, "<html>old</html>")
	fetcher := &stubFetcher{body: "<html>D</html>", delay: 10 * time.Millisecond}
	observer := &recordingObserver{}
	engine := NewEngine(opts, storage, fetcher, nil, observer)

	resp, err := engine.Respond(context.Background(), navigation(t, "http://app.local/"))
	if err != nil {
		t.Fatalf("respond error: %v", err)
	}
	if string(resp.Body) != "<html>D</html>" {
		t.Fatalf("expected network document, got %s", string(resp.Body))
	}
	// 网络胜出时写缓存是同步的，无需 Wait。
	if body, _ := cachedBody(t, storage, opts); body != "<html>D</html>" {
		t.Fatalf("cache should be updated synchronously, got %q", body)
	}
	outcomes := observer.snapshot()
	if len(outcomes) != 1 || outcomes[0] != OutcomeNetwork {
		t.Fatalf("timer must never fire, outcomes=%v", outcomes)
	}
}

func TestFallbackTimeoutServesCache(t *testing.T) {
	opts := testOptions(t)
	opts.Strategy = StrategyFallback
	opts.Timeout = 50 * time.Millisecond
	storage := cache.NewMemoryStorage()
	seedEntry(t, storage, opts, "<html>E</html>")
	fetcher := &stubFetcher{body: "<html>slow</html>", delay: 200 * time.Millisecond}
	observer := &recordingObserver{}
	engine := NewEngine(opts, storage, fetcher, nil, observer)

	started := time.Now()
	resp, err := engine.Respond(context.Background(), navigation(t, "http://app.local/"))
	elapsed := time.Since(started)
	if err != nil {
		t.Fatalf("respond error: %v", err)
	}
	if string(resp.Body) != "<html>E</html>" {
		t.Fatalf("expected cached document, got %s", string(resp.Body))
	}
	if elapsed >= 190*time.Millisecond {
		t.Fatalf("response should not wait for the slow network, took %s", elapsed)
	}

	// 慢请求最终完成后既不影响已返回的响应，也不写缓存。
	time.Sleep(250 * time.Millisecond)
	if string(resp.Body) != "<html>E</html>" {
		t.Fatalf("returned response changed after slow network completed")
	}
	if body, _ := cachedBody(t, storage, opts); body != "<html>E</html>" {
		t.Fatalf("abandoned fetch must not update cache, got %q", body)
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("cache hit after timeout should not fetch again, got %d", fetcher.Calls())
	}
	outcomes := observer.snapshot()
	if len(outcomes) != 2 || outcomes[0] != OutcomeTimeout || outcomes[1] != OutcomeHit {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func TestFallbackNetworkErrorFetchesAgainOnMiss(t *testing.T) {
	opts := testOptions(t)
	opts.Strategy = StrategyFallback
	storage := cache.NewMemoryStorage()
	fetcher := &stubFetcher{body: "<html>second</html>", failFirst: 1}
	engine := NewEngine(opts, storage, fetcher, nil, nil)

	resp, err := engine.Respond(context.Background(), navigation(t, "http://app.local/"))
	if err != nil {
		t.Fatalf("respond error: %v", err)
	}
	if string(resp.Body) != "<html>second</html>" {
		t.Fatalf("unexpected body %s", string(resp.Body))
	}
	if fetcher.Calls() != 2 {
		t.Fatalf("failed race plus cache miss should fetch twice, got %d", fetcher.Calls())
	}
	engine.Wait()
	if body, ok := cachedBody(t, storage, opts); !ok || body != "<html>second</html>" {
		t.Fatalf("second fetch should populate cache, got %q", body)
	}
}

func TestFallbackNetworkErrorWithCacheHit(t *testing.T) {
	opts := testOptions(t)
	opts.Strategy = StrategyFallback
	storage := cache.NewMemoryStorage()
	seedEntry(t, storage, opts, "<html>cached</html>")
	fetcher := &stubFetcher{failAll: true}
	engine := NewEngine(opts, storage, fetcher, nil, nil)

	resp, err := engine.Respond(context.Background(), navigation(t, "http://app.local/"))
	if err != nil {
		t.Fatalf("respond error: %v", err)
	}
	if string(resp.Body) != "<html>cached</html>" {
		t.Fatalf("unexpected body %s", string(resp.Body))
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("expected only the raced fetch, got %d", fetcher.Calls())
	}
}

func TestFallbackTotalFailurePropagates(t *testing.T) {
	opts := testOptions(t)
	opts.Strategy = StrategyFallback
	fetcher := &stubFetcher{failAll: true}
	engine := NewEngine(opts, cache.NewMemoryStorage(), fetcher, nil, nil)

	if _, err := engine.Respond(context.Background(), navigation(t, "http://app.local/")); !errors.Is(err, errNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if fetcher.Calls() != 2 {
		t.Fatalf("expected two fetch attempts, got %d", fetcher.Calls())
	}
}

func TestFallbackRespectsRequestCancellation(t *testing.T) {
	opts := testOptions(t)
	opts.Strategy = StrategyFallback
	opts.Timeout = time.Second
	engine := NewEngine(opts, cache.NewMemoryStorage(), &stubFetcher{delay: 500 * time.Millisecond}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := engine.Respond(ctx, navigation(t, "http://app.local/")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}
