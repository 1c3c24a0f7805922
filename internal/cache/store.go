package cache

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Storage 管理一组按名称区分的缓存，对应浏览器 CacheStorage 的语义。
type Storage interface {
	// Open 打开名为 name 的缓存，不存在时创建。
	Open(ctx context.Context, name string) (Cache, error)

	// Names 返回当前持久化的全部缓存名称，顺序不作保证。
	Names(ctx context.Context) ([]string, error)

	// Delete 删除整个缓存及其所有条目；缓存不存在时返回 nil。
	Delete(ctx context.Context, name string) error

	// Close 释放底层连接或文件句柄。
	Close() error
}

// Cache 是单个命名缓存，key 为入口文档的绝对 URL。
type Cache interface {
	// Match 返回缓存的响应快照，不存在时返回 ErrNotFound。
	Match(ctx context.Context, key string) (*Response, error)

	// Put 覆盖写入 key 对应的响应快照；同一 key 的并发写入以最后一次为准。
	Put(ctx context.Context, key string, resp *Response) error
}

// Response 是可持久化的响应快照（状态码、头部、正文）。
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Clone 深拷贝快照，返回给调用方的副本与缓存内部数据互不影响。
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := &Response{
		Status:   r.Status,
		Header:   make(http.Header, len(r.Header)),
		StoredAt: r.StoredAt,
	}
	for k, vs := range r.Header {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out.Header[k] = vv
	}
	if r.Body != nil {
		out.Body = make([]byte, len(r.Body))
		copy(out.Body, r.Body)
	}
	return out
}

// ErrNotFound 表示缓存条目不存在。
var ErrNotFound = errors.New("cache entry not found")

// ErrNilResponse 表示调用方试图写入空快照。
var ErrNilResponse = errors.New("cache: nil response")
