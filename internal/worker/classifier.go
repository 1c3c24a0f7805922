package worker

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Classifier 判断请求是否为可拦截的导航请求，纯函数、无副作用。
type Classifier struct {
	opts    Options
	matcher ScopeMatcher
}

// NewClassifier 使用给定 matcher 构建分类器。
func NewClassifier(opts Options, matcher ScopeMatcher) *Classifier {
	return &Classifier{opts: opts, matcher: matcher}
}

// Eligible 当且仅当请求为同源、GET、接受 HTML、位于 scope 内且不是开发环境测试页时返回 true。
func (c *Classifier) Eligible(req Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if req.URL == nil {
		return false
	}
	if !acceptsHTML(req.Header) {
		return false
	}
	if !sameOrigin(req.URL, c.opts.Origin) {
		return false
	}

	raw := req.URL.String()
	if len(c.opts.IncludeScope) > 0 && !c.matches(raw, c.opts.IncludeScope) {
		return false
	}
	if c.matches(raw, c.opts.ExcludeScope) {
		return false
	}
	if req.URL.Path == TestsPath && c.opts.isDevelopment() {
		return false
	}
	return true
}

func (c *Classifier) matches(raw string, patterns []string) bool {
	if c.matcher == nil || len(patterns) == 0 {
		return false
	}
	return c.matcher.Matches(raw, patterns)
}

// acceptsHTML 缺少 Accept 头时默认可拦截；存在时必须包含 text/html。
func acceptsHTML(header http.Header) bool {
	if header == nil {
		return true
	}
	values := header.Values("Accept")
	if len(values) == 0 {
		return true
	}
	return strings.Contains(strings.Join(values, ","), "text/html")
}

func sameOrigin(u, origin *url.URL) bool {
	if origin == nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, origin.Scheme) {
		return false
	}
	return canonicalHost(u) == canonicalHost(origin)
}

// canonicalHost 去掉默认端口并转小写，使 http://a:80 与 http://a 视为同源。
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	switch {
	case port == "":
	case port == "80" && strings.EqualFold(u.Scheme, "http"):
		port = ""
	case port == "443" && strings.EqualFold(u.Scheme, "https"):
		port = ""
	}
	if port == "" {
		return host
	}
	return net.JoinHostPort(host, port)
}
