package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/esw-index/internal/logging"
	"github.com/any-hub/esw-index/internal/server"
)

// PassthroughObserver 接收透传结果（ok / error），通常由 metrics.Collector 实现。
type PassthroughObserver interface {
	ObservePassthrough(result string)
}

// Passthrough 将未被拦截的请求原样转发到上游并流式返回，即默认网络行为。
type Passthrough struct {
	client     *http.Client
	upstream   *url.URL
	logger     *logrus.Logger
	observer   PassthroughObserver
	listenPort int
}

// PassthroughOptions 汇总 Passthrough 的依赖，Observer 可为空。
type PassthroughOptions struct {
	Client     *http.Client
	Upstream   string
	Logger     *logrus.Logger
	Observer   PassthroughObserver
	ListenPort int
}

// NewPassthrough 构造透传处理器。
func NewPassthrough(opts PassthroughOptions) (*Passthrough, error) {
	if opts.Client == nil {
		return nil, errors.New("http client is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	base, err := parseUpstream(opts.Upstream)
	if err != nil {
		return nil, err
	}
	return &Passthrough{
		client:     opts.Client,
		upstream:   base,
		logger:     opts.Logger,
		observer:   opts.Observer,
		listenPort: opts.ListenPort,
	}, nil
}

// Forward 实现 server.Passthrough。
func (p *Passthrough) Forward(c fiber.Ctx) error {
	started := time.Now()
	uri := c.Request().URI()
	target := resolveUpstreamURL(p.upstream, string(uri.Path()), string(uri.QueryString()))

	req, err := p.buildUpstreamRequest(c, target)
	if err != nil {
		p.logResult(c, target, 0, started, err)
		return p.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logResult(c, target, 0, started, err)
		return p.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	c.Status(resp.StatusCode)

	if c.Method() == http.MethodHead {
		p.logResult(c, target, resp.StatusCode, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), resp.Body)
	p.logResult(c, target, resp.StatusCode, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("proxy stream failed: %v", err))
	}
	return nil
}

func (p *Passthrough) buildUpstreamRequest(c fiber.Ctx, upstream *url.URL) (*http.Request, error) {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), upstream.String(), bytesReader(c.Body()))
	if err != nil {
		return nil, err
	}

	server.CopyHeaders(req.Header, server.RequestHeaders(c))
	req.Header.Del("Accept-Encoding")
	req.Header.Del("Content-Length")
	req.Host = upstream.Host
	req.Header.Set("Host", upstream.Host)
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Scheme())
	req.Header.Set("X-Forwarded-Port", strconv.Itoa(p.listenPort))
	return req, nil
}

func (p *Passthrough) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (p *Passthrough) logResult(c fiber.Ctx, upstream *url.URL, status int, started time.Time, err error) {
	fields := logging.RequestFields(c.Method(), string(c.Request().URI().Path()), "", "", false)
	fields["action"] = "passthrough"
	fields["upstream"] = upstream.Redacted()
	fields["upstream_status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID := server.RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		p.observe("error")
		fields["error"] = err.Error()
		p.logger.WithFields(fields).Error("passthrough_failed")
		return
	}
	p.observe("ok")
	p.logger.WithFields(fields).Debug("passthrough_complete")
}

func (p *Passthrough) observe(result string) {
	if p.observer != nil {
		p.observer.ObservePassthrough(result)
	}
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(b)
}

// copyResponseHeaders 逐值追加，保证 Set-Cookie 等多值头不被覆盖。
func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
}
