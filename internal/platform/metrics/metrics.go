package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-level Prometheus metrics. Feature packages
// with heavier instrumentation needs define their own metrics alongside their
// service.
type Metrics struct {
	ConsentsCreated   prometheus.Counter
	ConsentsRevoked   prometheus.Counter
	FetchesGranted    prometheus.Counter
	FetchesDenied     *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
}

// New creates and registers all application metrics.
func New() *Metrics {
	return &Metrics{
		ConsentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "datex_consents_created_total",
			Help: "Total number of consent grants created",
		}),
		ConsentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "datex_consents_revoked_total",
			Help: "Total number of consent grants revoked",
		}),
		FetchesGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "datex_data_fetches_granted_total",
			Help: "Total number of customer data fetches released",
		}),
		FetchesDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "datex_data_fetches_denied_total",
			Help: "Total number of customer data fetches denied, by reason",
		}, []string{"reason"}),
		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datex_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"path", "method"}),
	}
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(path, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDurationMs.WithLabelValues(path, method).
		Observe(float64(d.Microseconds()) / 1000.0)
}
