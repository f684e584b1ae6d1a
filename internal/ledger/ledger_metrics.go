package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LedgerOpsTotal counts ledger transitions by type.
	LedgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coverledger",
			Name:      "ledger_operations_total",
			Help:      "Total ledger operations by type.",
		},
		[]string{"type"},
	)

	// LedgerOpDuration observes transition latency by type.
	LedgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coverledger",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// LedgerReserveBalance tracks the pool reserve in minor units.
	LedgerReserveBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coverledger",
			Name:      "ledger_reserve_balance",
			Help:      "Premium reserve balance in minor units.",
		},
	)

	// LedgerPoliciesIssued tracks the policy nonce high-water mark.
	LedgerPoliciesIssued = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coverledger",
			Name:      "ledger_policies_issued_total",
			Help:      "Highest policy id issued so far.",
		},
	)

	// LedgerClaimsRecorded tracks the claim nonce high-water mark.
	LedgerClaimsRecorded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coverledger",
			Name:      "ledger_claims_recorded_total",
			Help:      "Highest claim id recorded so far.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerOpsTotal,
		LedgerOpDuration,
		LedgerReserveBalance,
		LedgerPoliciesIssued,
		LedgerClaimsRecorded,
	)
}

// observeOp increments the operation counter and returns a function to observe duration.
func observeOp(opType string) func() {
	LedgerOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		LedgerOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}
