// Package metrics exposes Prometheus collectors for entry document handling.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/any-hub/esw-index/internal/worker"
)

// Collector 实现 worker.Observer，并统计 passthrough 次数。
type Collector struct {
	registry    *prometheus.Registry
	fetches     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	passthrough *prometheus.CounterVec
}

// NewCollector 创建独立 Registry，避免与全局默认 Registry 冲突（测试可多次创建）。
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esw_index",
			Name:      "fetch_total",
			Help:      "Entry document strategy outcomes.",
		}, []string{"strategy", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "esw_index",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent in each strategy branch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"strategy", "outcome"}),
		passthrough: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esw_index",
			Name:      "passthrough_total",
			Help:      "Requests forwarded to the upstream without interception.",
		}, []string{"result"}),
	}
	c.registry.MustRegister(c.fetches, c.latency, c.passthrough)
	return c
}

// ObserveFetch implements worker.Observer.
func (c *Collector) ObserveFetch(strategy worker.Strategy, outcome worker.Outcome, elapsed time.Duration) {
	c.fetches.WithLabelValues(string(strategy), string(outcome)).Inc()
	c.latency.WithLabelValues(string(strategy), string(outcome)).Observe(elapsed.Seconds())
}

// ObservePassthrough 记录未被拦截的请求，result 为 ok 或 error。
func (c *Collector) ObservePassthrough(result string) {
	c.passthrough.WithLabelValues(result).Inc()
}

// Registry 返回供 /-/metrics 暴露的 Registry。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
