package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the residency engine. Tracks lifecycle
// operation counts/durations, conflict resolutions by action, and repair
// pass corrections.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Conflicts         *prometheus.CounterVec
	RoomsRepaired     prometheus.Counter
	AnomalousClosures prometheus.Counter
}

// New creates a Metrics instance with all residency engine metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bunkhouse_lifecycle_operations_total",
			Help: "Total lifecycle operations, by operation and outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bunkhouse_lifecycle_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		Conflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bunkhouse_registration_conflicts_total",
			Help: "Registration conflict resolutions, by action",
		}, []string{"action"}),
		RoomsRepaired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bunkhouse_rooms_repaired_total",
			Help: "Rooms whose occupant set was corrected by reconciliation",
		}),
		AnomalousClosures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bunkhouse_anomalous_closures_total",
			Help: "Stay periods closed synthetically during transfer",
		}),
	}
}

// ObserveOperation records one finished lifecycle operation.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// IncConflict records one conflict resolution.
func (m *Metrics) IncConflict(action string) {
	if m == nil {
		return
	}
	m.Conflicts.WithLabelValues(action).Inc()
}

// AddRoomsRepaired records corrected rooms from a repair pass.
func (m *Metrics) AddRoomsRepaired(n int) {
	if m == nil {
		return
	}
	m.RoomsRepaired.Add(float64(n))
}

// IncAnomalousClosure records one synthetic period closure.
func (m *Metrics) IncAnomalousClosure() {
	if m == nil {
		return
	}
	m.AnomalousClosures.Inc()
}
