package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/any-hub/esw-index/internal/worker"
)

// StatusSource 提供 /-/status 所需的 worker 只读视图。
type StatusSource interface {
	Options() worker.Options
	State() worker.State
	Generation() string
}

type statusPayload struct {
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	Strategy      string `json:"strategy"`
	Generation    string `json:"generation"`
	State         string `json:"state"`
	EntryDocument string `json:"entry_document"`
}

// RegisterDiagnostics 暴露 /-/status 与 /-/metrics，gatherer 为空时不注册 metrics。
func RegisterDiagnostics(app *fiber.App, source StatusSource, gatherer prometheus.Gatherer) {
	if app == nil || source == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(source))
	})

	if gatherer != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

func encodeStatus(source StatusSource) statusPayload {
	opts := source.Options()
	return statusPayload{
		Version:       opts.Version,
		Environment:   opts.Environment,
		Strategy:      string(opts.Strategy),
		Generation:    source.Generation(),
		State:         source.State().String(),
		EntryDocument: opts.EntryDocumentURL(),
	}
}
