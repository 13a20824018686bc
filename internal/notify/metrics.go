package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification side channel. Dropped
// counts matter most here: delivery is best-effort, so the only operational
// signal of a broken channel is the drop rate.
type Metrics struct {
	Delivered    prometheus.Counter
	Dropped      *prometheus.CounterVec
	SendDuration prometheus.Histogram
}

// NewMetrics registers the dispatcher metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bunkhouse_notifications_delivered_total",
			Help: "Total notifications delivered to the transport",
		}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bunkhouse_notifications_dropped_total",
			Help: "Total notifications dropped, by reason",
		}, []string{"reason"}),
		SendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bunkhouse_notification_send_duration_seconds",
			Help:    "Duration of transport sends including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncDelivered() {
	if m != nil {
		m.Delivered.Inc()
	}
}

func (m *Metrics) IncDropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveSend(seconds float64) {
	if m != nil {
		m.SendDuration.Observe(seconds)
	}
}
