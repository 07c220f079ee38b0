package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Policy metrics
	PolicyDecisions *prometheus.CounterVec
	PolicyLatency   prometheus.Histogram

	// Field encryption metrics
	CryptoOps     *prometheus.CounterVec
	CryptoErrors  *prometheus.CounterVec
	CryptoLatency *prometheus.HistogramVec

	// Key vault metrics
	VaultLookups     *prometheus.CounterVec
	VaultKeyCreation prometheus.Counter

	// Audit metrics
	AuditWrites       prometheus.Counter
	AuditWriteRetries prometheus.Counter
	AuditWriteFailed  prometheus.Counter
	AuditWriteLatency prometheus.Histogram
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		PolicyDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "policy_decisions_total",
			Help:      "Policy evaluations by outcome (grant, deny, abstain)",
		}, []string{"outcome"}),
		PolicyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "policy_evaluation_duration_seconds",
			Help:      "Time spent evaluating access policy",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		}),
		CryptoOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "field_crypto_ops_total",
			Help:      "Field encrypt/decrypt operations by class and direction",
		}, []string{"class", "op"}),
		CryptoErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "field_crypto_errors_total",
			Help:      "Field crypto failures by kind",
		}, []string{"kind"}),
		CryptoLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "field_crypto_duration_seconds",
			Help:      "Time spent in field encrypt/decrypt",
			Buckets:   []float64{.00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"op"}),
		VaultLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "keyvault_lookups_total",
			Help:      "Data key lookups by result (hit, miss, error)",
		}, []string{"result"}),
		VaultKeyCreation: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "keyvault_keys_created_total",
			Help:      "Data encryption keys created",
		}),
		AuditWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_entries_written_total",
			Help:      "Audit entries successfully appended",
		}),
		AuditWriteRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_write_retries_total",
			Help:      "Audit append attempts retried after transient failure",
		}),
		AuditWriteFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_writes_failed_total",
			Help:      "Audit appends that exhausted retries and failed closed",
		}),
		AuditWriteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_write_duration_seconds",
			Help:      "Time spent appending audit entries",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}
