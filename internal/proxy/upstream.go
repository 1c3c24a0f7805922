package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/any-hub/esw-index/internal/server"
)

// parseUpstream 校验上游地址，仅接受带 host 的 http/https URL。
func parseUpstream(raw string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream must use http or https: %s", raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("upstream host is empty: %s", raw)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawPath = ""
	base.RawQuery = ""
	base.Fragment = ""
	return base, nil
}

// resolveUpstreamURL 将请求路径拼接到上游 base path 之后，保留查询串与末尾斜杠。
func resolveUpstreamURL(base *url.URL, rawPath, rawQuery string) *url.URL {
	clean := normalizeRequestPath(rawPath)
	target := *base
	target.Path = base.Path + clean
	target.RawPath = ""
	target.RawQuery = rawQuery
	return &target
}

func normalizeRequestPath(raw string) string {
	if raw == "" {
		raw = "/"
	}
	clean := path.Clean("/" + raw)
	if strings.HasSuffix(raw, "/") && clean != "/" {
		clean += "/"
	}
	return clean
}

// snapshotHeaders 复制上游响应头，去掉 hop-by-hop 字段与 Content-Length（由输出端重新计算）。
func snapshotHeaders(src http.Header) http.Header {
	dst := http.Header{}
	server.CopyHeaders(dst, src)
	dst.Del("Content-Length")
	return dst
}
