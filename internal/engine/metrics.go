package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lifeline/lifeline/internal/ir"
)

// Sync pass outcomes, used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeCoalesced = "coalesced"
	OutcomeOffline   = "offline"
	OutcomeError     = "error"
)

// Upload results, used as the "result" label.
const (
	UploadSynced = "synced"
	UploadFailed = "failed"
)

// Metrics records sync engine activity in Prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	passes   *prometheus.CounterVec
	uploads  *prometheus.CounterVec
	pending  prometheus.Gauge
	synced   prometheus.Gauge
	online   prometheus.Gauge
	duration prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// Panics if reg already holds collectors with the same names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifeline",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync pass requests by outcome.",
		}, []string{"outcome"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifeline",
			Subsystem: "sync",
			Name:      "uploads_total",
			Help:      "Record upload attempts by result.",
		}, []string{"result"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lifeline",
			Subsystem: "queue",
			Name:      "pending_records",
			Help:      "Records waiting to be uploaded.",
		}),
		synced: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lifeline",
			Subsystem: "queue",
			Name:      "synced_records",
			Help:      "Records accepted by the endpoint.",
		}),
		online: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lifeline",
			Subsystem: "network",
			Name:      "online",
			Help:      "1 if the network is believed usable.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lifeline",
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of completed sync passes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
}

func (m *Metrics) pass(outcome string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) upload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) observePass(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) setStats(s ir.Stats) {
	if m == nil {
		return
	}
	m.pending.Set(float64(s.Pending))
	m.synced.Set(float64(s.Synced))
}

func (m *Metrics) setOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
	} else {
		m.online.Set(0)
	}
}
