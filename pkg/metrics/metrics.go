package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tournament_desk"

// Metrics holds the collectors the desk reports. Register it once per registry.
type Metrics struct {
	Batches         *prometheus.CounterVec
	Operations      *prometheus.CounterVec
	PersistFailures prometheus.Counter
	RemoteRecords   *prometheus.CounterVec
	KeysIssued      prometheus.Counter
	KeyRedemptions  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Mutation batches applied, by outcome.",
		}, []string{"outcome"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Batch entries applied, by method and result.",
		}, []string{"method", "result"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Committed records that could not be written to the local store.",
		}),
		RemoteRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_records_total",
			Help:      "Records received from other sessions, by whether they replaced the local one.",
		}, []string{"result"}),
		KeysIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_issued_total",
			Help:      "Authorization keys issued by this session.",
		}),
		KeyRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_redemptions_total",
			Help:      "Authorization key redemptions decided by the authority, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Batches, m.Operations, m.PersistFailures, m.RemoteRecords, m.KeysIssued, m.KeyRedemptions)
	return m
}
