package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zoobzio/framez"
)

const namespace = "framez"

// Collector is a framez.Sink that exports markers and stage statistics
// as Prometheus metrics.
//
// Metrics:
//   - framez_markers_total{marker}: markers seen, by type
//   - framez_vsync_interval_seconds: time between consecutive vsyncs
//   - framez_stage_seconds{stage,stat}: last periodic report per stage
//   - framez_stage_runs_total{stage}: samples covered by periodic reports
type Collector struct {
	markers  *prometheus.CounterVec
	interval prometheus.Histogram
	stage    *prometheus.GaugeVec
	runs     *prometheus.CounterVec

	mu        sync.Mutex
	lastVSync time.Time
}

var _ framez.Sink = (*Collector)(nil)

// NewCollector registers the sink's metrics on reg, labelled with the
// pipeline id. It panics if the metrics are already registered, as
// promauto does.
func NewCollector(reg prometheus.Registerer, pipeline string) *Collector {
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"pipeline": pipeline}, reg))

	return &Collector{
		markers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_total",
			Help:      "Pipeline markers recorded, by type",
		}, []string{"marker"}),

		interval: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vsync_interval_seconds",
			Help:      "Time between consecutive vsync notifications",
			Buckets:   []float64{0.004, 0.007, 0.0085, 0.0111, 0.0139, 0.0167, 0.02, 0.0334, 0.05, 0.1},
		}),

		stage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_seconds",
			Help:      "Stage duration statistics from the last periodic report",
		}, []string{"stage", "stat"}),

		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Stage samples covered by periodic reports",
		}, []string{"stage"}),
	}
}

// OnMarker implements framez.Sink.
func (c *Collector) OnMarker(m framez.Marker) {
	c.markers.WithLabelValues(m.Type.String()).Inc()

	if m.Type != framez.MarkerVSync {
		return
	}
	at := m.Stamp.Time()
	c.mu.Lock()
	prev := c.lastVSync
	c.lastVSync = at
	c.mu.Unlock()
	if !prev.IsZero() && at.After(prev) {
		c.interval.Observe(at.Sub(prev).Seconds())
	}
}

// OnStats implements framez.Sink.
func (c *Collector) OnStats(s framez.StageStats) {
	c.stage.WithLabelValues(s.Name, "min").Set(s.Min)
	c.stage.WithLabelValues(s.Name, "max").Set(s.Max)
	c.stage.WithLabelValues(s.Name, "mean").Set(s.Mean)
	c.stage.WithLabelValues(s.Name, "stddev").Set(s.StdDev)
	c.runs.WithLabelValues(s.Name).Add(float64(s.Count))
}

// RegisterPipelineMetrics exposes the counters of framez.Metrics on reg.
// metrics is called on every scrape, typically Controller.Metrics.
func RegisterPipelineMetrics(reg prometheus.Registerer, pipeline string, metrics func() framez.Metrics) {
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"pipeline": pipeline}, reg))

	counter := func(name, help string, v func(framez.Metrics) int64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v(metrics())) })
	}
	counter("vsyncs_total", "Valid vsync notifications", func(m framez.Metrics) int64 { return m.VSyncs })
	counter("vsyncs_invalid_total", "VSync source errors", func(m framez.Metrics) int64 { return m.InvalidVSyncs })
	counter("vsyncs_dropped_total", "VSyncs that arrived while a cycle was still pending", func(m framez.Metrics) int64 { return m.DroppedVSyncs })
	counter("updates_total", "Completed scene updates", func(m framez.Metrics) int64 { return m.Updates })
	counter("renders_total", "Completed render cycles", func(m framez.Metrics) int64 { return m.Renders })
	counter("sleeps_total", "Times the pipeline went idle", func(m framez.Metrics) int64 { return m.Sleeps })
	counter("surface_replacements_total", "Acknowledged surface replacements", func(m framez.Metrics) int64 { return m.SurfaceReplacements })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_rate_vsyncs",
		Help:      "VSyncs per update/render cycle",
	}, func() float64 { return float64(metrics().RefreshRate) })
}
