package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BatchesRegistered    prometheus.Counter
	BatchUpdates         prometheus.Counter
	BatchUpdatesDenied   prometheus.Counter
	RegistrationRejected *prometheus.CounterVec
	FeesCollected        prometheus.Counter
	BatchesActive        prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		BatchesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_registry_batches_registered_total",
			Help: "Total number of batches successfully registered",
		}),
		BatchUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_registry_batch_updates_total",
			Help: "Total number of successful batch updates",
		}),
		BatchUpdatesDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_registry_batch_updates_denied_total",
			Help: "Total number of rejected batch update attempts",
		}),
		RegistrationRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_registry_registrations_rejected_total",
			Help: "Total number of rejected registrations by error code",
		}, []string{"code"}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_registry_fees_collected_total",
			Help: "Sum of registration fees transferred to the authority",
		}),
		BatchesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "provenance_registry_batches_active",
			Help: "Current number of active batches",
		}),
	}
}

func (m *Metrics) IncrementBatchesRegistered() {
	m.BatchesRegistered.Inc()
	m.BatchesActive.Inc()
}

func (m *Metrics) IncrementBatchUpdates() {
	m.BatchUpdates.Inc()
}

func (m *Metrics) IncrementBatchUpdatesDenied() {
	m.BatchUpdatesDenied.Inc()
}

func (m *Metrics) IncrementRegistrationRejected(code string) {
	m.RegistrationRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) AddFeesCollected(amount uint64) {
	m.FeesCollected.Add(float64(amount))
}
