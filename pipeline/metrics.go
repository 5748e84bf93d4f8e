package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts debug runs by terminal stage.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tooldebug",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Debug pipeline runs by terminal stage and result",
		}, []string{"stage", "ok"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tooldebug",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Debug pipeline wall time by terminal stage",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"stage"}),
	}
}

func (m *Metrics) observe(stage Stage, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(stage), strconv.FormatBool(ok)).Inc()
	m.duration.WithLabelValues(string(stage)).Observe(d.Seconds())
}
