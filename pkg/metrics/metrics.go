// Package metrics records renderer metrics in a Prometheus registry
package metrics

import (
	"fmt"
	"time"

	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the renderer metrics
type Collector struct {
	registry *prometheus.Registry

	RendersTotal   *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	QueueDepth     prometheus.Gauge
	ReloadsTotal   *prometheus.CounterVec
	ReloadDuration prometheus.Histogram
	EnginesRunning prometheus.Gauge
}

var _ interfaces.MetricsRecorder = (*Collector)(nil)

// NewCollector registers the renderer metrics in a fresh registry
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.NewRegistry())
}

// NewCollectorWithRegistry registers the renderer metrics in registry
func NewCollectorWithRegistry(registry *prometheus.Registry) *Collector {
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phantom_renders_total",
				Help: "Total number of completed renders",
			},
			[]string{"outcome"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phantom_render_duration_seconds",
				Help:    "Render duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "phantom_queue_depth",
				Help: "Number of render requests waiting for an engine",
			},
		),
		ReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phantom_reloads_total",
				Help: "Total number of live reload attempts",
			},
			[]string{"result"},
		),
		ReloadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phantom_reload_duration_seconds",
				Help:    "Pipeline restart duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		EnginesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "phantom_engines_running",
				Help: "Number of started render engines",
			},
		),
	}
}

// ObserveRender records one completed render
func (c *Collector) ObserveRender(uri string, duration time.Duration, err error) {
	outcome := types.RenderOutcomeSuccess
	if err != nil {
		outcome = types.RenderOutcomeFailure
	}
	c.RendersTotal.WithLabelValues(string(outcome)).Inc()
	c.RenderDuration.Observe(duration.Seconds())
}

// SetQueueDepth records the number of waiting requests
func (c *Collector) SetQueueDepth(depth int) {
	c.QueueDepth.Set(float64(depth))
}

// SetEnginesRunning records the number of started engines
func (c *Collector) SetEnginesRunning(n int) {
	c.EnginesRunning.Set(float64(n))
}

// ObserveReload records one reload attempt
func (c *Collector) ObserveReload(result types.ReloadResult, duration time.Duration) {
	c.ReloadsTotal.WithLabelValues(string(result)).Inc()
	c.ReloadDuration.Observe(duration.Seconds())
}

// Gatherer exposes the registry for scraping or export
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteToTextfile writes every metric to path in the text exposition
// format, for the node exporter textfile collector
func (c *Collector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
