package contract

import "github.com/prometheus/client_golang/prometheus"

var (
	policiesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coverledger",
			Name:      "policies_issued_total",
			Help:      "Total policies issued.",
		},
	)

	premiumCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coverledger",
			Name:      "premium_collected_total",
			Help:      "Total premium collected in minor units.",
		},
	)

	claimsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coverledger",
			Name:      "claims_submitted_total",
			Help:      "Claims submitted by fraud decision.",
		},
		[]string{"decision"},
	)

	claimsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coverledger",
			Name:      "claims_processed_total",
			Help:      "Claims processed by outcome.",
		},
		[]string{"outcome"},
	)

	riskScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coverledger",
			Name:      "risk_score",
			Help:      "Risk scores of issued policies.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	fraudScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coverledger",
			Name:      "fraud_score",
			Help:      "Fraud scores of submitted claims.",
			Buckets:   []float64{0, 25, 50, 75, 100, 125, 150, 175},
		},
	)
)

func init() {
	prometheus.MustRegister(
		policiesIssued,
		premiumCollected,
		claimsSubmitted,
		claimsProcessed,
		riskScores,
		fraudScores,
	)
}
