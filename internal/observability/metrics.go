// Package observability holds the exporter's own instrumentation.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Error kinds recorded in ErrorsTotal.
const (
	ErrorFetch    = "fetch"
	ErrorClassify = "classify"
)

// Metrics is the exporter self-instrumentation. Every vector is safe for
// concurrent use, so one Metrics value is shared by all pollers.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec // labels: subsystem, cluster
	ErrorsTotal     *prometheus.CounterVec   // labels: subsystem, kind
}

// NewMetrics creates the instrumentation and registers it on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "elasticsearch",
			Name:      "subsystem_request_duration_seconds",
			Help:      "Time spent fetching, classifying and collecting one subsystem cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"subsystem", "cluster"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "elasticsearch",
			Name:      "subsystem_errors_total",
			Help:      "Failed fetch cycles and unclassifiable metrics per subsystem.",
		}, []string{"subsystem", "kind"}),
	}

	for _, c := range []prometheus.Collector{m.RequestDuration, m.ErrorsTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CycleObserver returns the histogram child for one subsystem path and cluster.
func (m *Metrics) CycleObserver(path, cluster string) prometheus.Observer {
	return m.RequestDuration.WithLabelValues(path, cluster)
}
