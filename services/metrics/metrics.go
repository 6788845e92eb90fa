package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the tool server.
type Metrics struct {
	Registry          *prometheus.Registry
	ToolCallsTotal    *prometheus.CounterVec
	ToolDuration      *prometheus.HistogramVec
	ProductsExtracted prometheus.Counter
	ErrorsCaptured    *prometheus.CounterVec
	NavigationRetries prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	toolCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_tool_calls_total",
			Help: "Total tool calls by tool and outcome.",
		},
		[]string{"tool", "status"},
	)
	toolDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_tool_duration_seconds",
			Help:    "Tool call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_products_extracted_total",
			Help: "Total number of product records extracted.",
		},
	)
	errorsCaptured := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_errors_captured_total",
			Help: "Total number of errors captured by category.",
		},
		[]string{"category"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_navigation_retries_total",
			Help: "Total number of navigation retry attempts.",
		},
	)

	registry.MustRegister(toolCalls, toolDuration, products, errorsCaptured, retries)

	return &Metrics{
		Registry:          registry,
		ToolCallsTotal:    toolCalls,
		ToolDuration:      toolDuration,
		ProductsExtracted: products,
		ErrorsCaptured:    errorsCaptured,
		NavigationRetries: retries,
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveToolCall records one tool call outcome and its duration.
func (m *Metrics) ObserveToolCall(tool string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// AddProducts increments the extracted products counter.
func (m *Metrics) AddProducts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ProductsExtracted.Add(float64(n))
}

// IncErrorCaptured increments the captured errors counter for a category.
func (m *Metrics) IncErrorCaptured(category string) {
	if m == nil {
		return
	}
	m.ErrorsCaptured.WithLabelValues(category).Inc()
}

// IncRetries increments the navigation retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.NavigationRetries.Inc()
}
