// Package metrics exports pipeline activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/platewatch/internal/app"
	"github.com/bft-labs/platewatch/internal/domain"
)

const namespace = "platewatch"

// LabelReason labels rejected candidates.
const LabelReason = "reason"

// Metrics implements app.PipelineEventEmitter and app.EventEmitter.
type Metrics struct {
	framesAnalyzed     prometheus.Counter
	platesAccepted     prometheus.Counter
	candidatesRejected *prometheus.CounterVec
	detectErrors       prometheus.Counter
	queueDepth         prometheus.Gauge
	analysisSeconds    prometheus.Histogram

	windowsFlushed prometheus.Counter
	platesFlushed  prometheus.Counter
	flushSeconds   prometheus.Histogram
	flushErrors    prometheus.Counter
	windowsDropped prometheus.Counter
	platesDropped  prometheus.Counter

	state prometheus.Gauge
}

// New registers the pipeline metrics with reg.
// Pass prometheus.DefaultRegisterer to expose them on the global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		framesAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_analyzed_total",
			Help:      "Total number of frames analyzed",
		}),
		platesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plates_accepted_total",
			Help:      "Total number of plate readings that passed validation",
		}),
		candidatesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_rejected_total",
			Help:      "Total number of rejected plate candidates",
		}, []string{LabelReason}),
		detectErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detect_errors_total",
			Help:      "Total number of detector failures",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Frames waiting for analysis",
		}),
		analysisSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_analysis_seconds",
			Help:      "Time spent analyzing one frame",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		windowsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "windows_flushed_total",
			Help:      "Total number of windows persisted",
		}),
		platesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "plates_flushed_total",
			Help:      "Total number of plate records persisted",
		}),
		flushSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "flush_seconds",
			Help:      "Time spent in a successful flush",
			Buckets:   prometheus.DefBuckets,
		}),
		flushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "flush_errors_total",
			Help:      "Total number of failed flush attempts",
		}),
		windowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "windows_dropped_total",
			Help:      "Total number of windows discarded after exhausting retries",
		}),
		platesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "plates_dropped_total",
			Help:      "Total number of plate records discarded with their window",
		}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_state",
			Help:      "Pipeline lifecycle state (0 idle, 1 running, 2 draining, 3 stopped)",
		}),
	}
}

func (m *Metrics) OnFrameAnalyzed(_ domain.Frame, accepted int, d time.Duration) {
	m.framesAnalyzed.Inc()
	m.platesAccepted.Add(float64(accepted))
	m.analysisSeconds.Observe(d.Seconds())
}

func (m *Metrics) OnCandidateRejected(reason string) {
	m.candidatesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) OnDetectError(error) {
	m.detectErrors.Inc()
}

func (m *Metrics) OnQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) OnWindowFlushed(w app.WindowEvent, _ int, d time.Duration) {
	m.windowsFlushed.Inc()
	m.platesFlushed.Add(float64(len(w.Plates)))
	m.flushSeconds.Observe(d.Seconds())
}

func (m *Metrics) OnFlushError(app.WindowEvent, error, int, bool) {
	m.flushErrors.Inc()
}

func (m *Metrics) OnWindowDropped(w app.WindowEvent, _ error) {
	m.windowsDropped.Inc()
	m.platesDropped.Add(float64(len(w.Plates)))
}

// OnStateChange records the lifecycle state.
func (m *Metrics) OnStateChange(_, current app.State, _ string) {
	m.state.Set(float64(current))
}
