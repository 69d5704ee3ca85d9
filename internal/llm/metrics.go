package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts generation requests on its own registry
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the generation metrics on registry, or on a fresh one when nil
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	return &Metrics{
		registry: registry,
		requests: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "improv_generation_requests_total",
				Help: "Total number of generation requests by provider, model, operation and status.",
			},
			[]string{"provider", "model", "operation", "status"},
		),
		duration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "improv_generation_request_duration_seconds",
				Help:    "Histogram of generation request durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "operation"},
		),
	}
}

// Registry returns the registry holding the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(provider, model string, op Operation, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requests.WithLabelValues(provider, model, string(op), status).Inc()
	m.duration.WithLabelValues(provider, model, string(op)).Observe(time.Since(start).Seconds())
}

// instrumentedCompleter records every Complete call
type instrumentedCompleter struct {
	Completer
	model   string
	metrics *Metrics
}

// Instrument wraps c so its requests are recorded in m
func (m *Metrics) Instrument(c Completer, model string) Completer {
	if m == nil {
		return c
	}
	return &instrumentedCompleter{Completer: c, model: model, metrics: m}
}

func (c *instrumentedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.Completer.Complete(ctx, req)
	c.metrics.observe(c.Name(), c.model, req.Op, start, err)
	return text, err
}

type instrumentedImages struct {
	ImageGenerator
	provider string
	model    string
	metrics  *Metrics
}

// InstrumentImages wraps g so its requests are recorded in m
func (m *Metrics) InstrumentImages(g ImageGenerator, provider, model string) ImageGenerator {
	if m == nil {
		return g
	}
	return &instrumentedImages{ImageGenerator: g, provider: provider, model: model, metrics: m}
}

func (g *instrumentedImages) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	start := time.Now()
	img, err := g.ImageGenerator.GenerateImage(ctx, prompt)
	g.metrics.observe(g.provider, g.model, OpImage, start, err)
	return img, err
}
