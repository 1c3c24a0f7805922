package worker

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/any-hub/esw-index/internal/cache"
)

// Request 是被拦截请求的只读视图，Header 允许为 nil。
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
}

// credentialHeaders 列出 credentials: include 语义下随请求转发的头部。
var credentialHeaders = []string{"Cookie", "Authorization"}

// Credentials 提取触发请求携带的凭证，供入口文档回源时一并发送。
func (r Request) Credentials() http.Header {
	if r.Header == nil {
		return nil
	}
	var out http.Header
	for _, name := range credentialHeaders {
		values := r.Header.Values(name)
		if len(values) == 0 {
			continue
		}
		if out == nil {
			out = http.Header{}
		}
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}

// FetchRequest 描述一次携带凭证的入口文档回源。
type FetchRequest struct {
	URL         string
	Credentials http.Header
}

// Fetcher 负责网络获取入口文档；网络错误返回 error，HTTP 非 2xx 仍视为响应。
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*cache.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req FetchRequest) (*cache.Response, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req FetchRequest) (*cache.Response, error) {
	return f(ctx, req)
}

// ScopeMatcher 判断 URL 是否命中任意规则。
type ScopeMatcher interface {
	Matches(rawURL string, patterns []string) bool
}

// Outcome 标记一次策略执行经过的分支，用于日志与指标。
type Outcome string

const (
	OutcomeHit          Outcome = "hit"
	OutcomeMiss         Outcome = "miss"
	OutcomeNetwork      Outcome = "network"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeNetworkError Outcome = "network_error"
)

// Observer 接收策略分支与耗时，nil 时忽略。
type Observer interface {
	ObserveFetch(strategy Strategy, outcome Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(Strategy, Outcome, time.Duration) {}
