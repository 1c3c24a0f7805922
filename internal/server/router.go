package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/esw-index/internal/cache"
	"github.com/any-hub/esw-index/internal/logging"
	"github.com/any-hub/esw-index/internal/worker"
)

// HeaderCache 标记响应来自入口文档策略，值为当前代际缓存名称。
const HeaderCache = "X-Esw-Index-Cache"

// EntryWorker 是路由层依赖的 worker 能力，测试可注入替身。
type EntryWorker interface {
	HandleFetch(ctx context.Context, req worker.Request) (*cache.Response, bool, error)
	Options() worker.Options
	Generation() string
}

// Passthrough 负责未被拦截请求的默认网络行为。
type Passthrough interface {
	Forward(fiber.Ctx) error
}

// PassthroughFunc adapts a function to the Passthrough interface.
type PassthroughFunc func(fiber.Ctx) error

// Forward makes PassthroughFunc satisfy Passthrough.
func (f PassthroughFunc) Forward(c fiber.Ctx) error {
	return f(c)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger      *logrus.Logger
	Worker      EntryWorker
	Passthrough Passthrough
	ListenPort  int
}

const contextKeyRequestID = "_eswindex_request_id"

// NewApp builds a Fiber application that routes eligible navigations through
// the worker and forwards everything else upstream.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Worker == nil {
		return nil, errors.New("worker is required")
	}
	if opts.Passthrough == nil {
		return nil, errors.New("passthrough handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return handleRequest(c, opts)
	})

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func handleRequest(c fiber.Ctx, opts AppOptions) error {
	started := time.Now()
	req, err := buildWorkerRequest(c)
	if err != nil {
		return opts.Passthrough.Forward(c)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, handled, err := opts.Worker.HandleFetch(ctx, req)
	if !handled {
		return opts.Passthrough.Forward(c)
	}

	generation := opts.Worker.Generation()
	fields := logging.RequestFields(req.Method, req.URL.Path, string(opts.Worker.Options().Strategy), generation, true)
	fields["action"] = "fetch"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID := RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}

	if err != nil {
		fields["error"] = err.Error()
		opts.Logger.WithFields(fields).Error("entry_document_unavailable")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "entry_document_unavailable",
		})
	}

	fields["status"] = resp.Status
	opts.Logger.WithFields(fields).Info("fetch_complete")
	return writeSnapshot(c, resp, generation)
}

// buildWorkerRequest 以 scheme + Host 头还原请求的绝对 URL。
func buildWorkerRequest(c fiber.Ctx) (worker.Request, error) {
	target, err := url.ParseRequestURI(c.OriginalURL())
	if err != nil {
		return worker.Request{}, err
	}
	target.Scheme = c.Scheme()
	target.Host = strings.TrimSpace(getHostHeader(c))
	return worker.Request{
		Method: c.Method(),
		URL:    target,
		Header: RequestHeaders(c),
	}, nil
}

func writeSnapshot(c fiber.Ctx, resp *cache.Response, generation string) error {
	for key, values := range resp.Header {
		if isHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
	c.Set(HeaderCache, generation)

	status := resp.Status
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).Send(resp.Body)
}

func getHostHeader(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}

// RequestHeaders 将 fasthttp 请求头转换为 http.Header。
func RequestHeaders(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
