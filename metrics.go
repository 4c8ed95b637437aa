package beacon

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	reasonEmpty       = "empty"
	reasonComposite   = "composite"
	reasonUnsupported = "unsupported"
	reasonNoValues    = "no_values"
)

// Metrics counts what an Output drops and delivers. A nil *Metrics records nothing.
type Metrics struct {
	recordsDropped   *prometheus.CounterVec
	pointsWritten    prometheus.Counter
	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_records_dropped_total",
			Help: "Records or fields dropped before encoding, by reason.",
		}, []string{"reason"}),
		pointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_points_written_total",
			Help: "Points encoded into delivered payloads.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_deliveries_total",
			Help: "Delivery attempts, by outcome.",
		}, []string{"outcome"}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_delivery_duration_seconds",
			Help:    "Time spent posting a payload.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{m.recordsDropped, m.pointsWritten, m.deliveries, m.deliveryDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordDropped(reason string) {
	if m == nil {
		return
	}
	m.recordsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) pointsDelivered(n int) {
	if m == nil {
		return
	}
	m.pointsWritten.Add(float64(n))
}

func (m *Metrics) delivery(outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome.String()).Inc()
	m.deliveryDuration.Observe(elapsed.Seconds())
}
