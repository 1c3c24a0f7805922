package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/any-hub/esw-index/internal/cache"
	"github.com/any-hub/esw-index/internal/worker"
)

// Fetcher 从上游获取入口文档，实现 worker.Fetcher。
// 入口文档 URL 基于 Origin，回源时只保留其路径与查询串并映射到上游。
type Fetcher struct {
	client   *http.Client
	upstream *url.URL
	now      func() time.Time
}

// NewFetcher 使用共享 http.Client 构造 Fetcher。
func NewFetcher(client *http.Client, upstream string) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	base, err := parseUpstream(upstream)
	if err != nil {
		return nil, err
	}
	return &Fetcher{client: client, upstream: base, now: time.Now}, nil
}

// Fetch 完整读取响应正文；仅网络或读取失败返回 error，非 2xx 状态码照常返回。
func (f *Fetcher) Fetch(ctx context.Context, fr worker.FetchRequest) (*cache.Response, error) {
	entry, err := url.Parse(fr.URL)
	if err != nil {
		return nil, fmt.Errorf("parse entry document url: %w", err)
	}
	target := resolveUpstreamURL(f.upstream, entry.Path, entry.RawQuery)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	for key, values := range fr.Credentials {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target.Redacted(), err)
	}

	return &cache.Response{
		Status:   resp.StatusCode,
		Header:   snapshotHeaders(resp.Header),
		Body:     body,
		StoredAt: f.now().UTC(),
	}, nil
}
