package authstate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes recorded on tasktwin_auth_resolutions_total.
const (
	outcomeOK         = "ok"
	outcomeCached     = "cached"
	outcomeStale      = "stale_fallback"
	outcomeFailed     = "failed"
	outcomeTimeout    = "timeout"
	outcomeSuperseded = "superseded"
)

// metrics holds the Prometheus metrics for the machine.
// All methods are nil-safe so an unconfigured machine pays nothing.
type metrics struct {
	resolutions *prometheus.CounterVec
	duration    prometheus.Histogram
	retries     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktwin",
			Subsystem: "auth",
			Name:      "resolutions_total",
			Help:      "Authorization resolutions by outcome",
		}, []string{"outcome"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tasktwin",
			Subsystem: "auth",
			Name:      "resolution_duration_seconds",
			Help:      "Authorization resolution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tasktwin",
			Subsystem: "auth",
			Name:      "lookup_retries_total",
			Help:      "Authorization lookups that needed the retry attempt",
		}),
	}
}

func (m *metrics) observe(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *metrics) retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}
