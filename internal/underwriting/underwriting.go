// Package underwriting holds the pure pricing functions: risk assessment
// and premium calculation. Both are deterministic, integer-only, and free
// of side effects so quoting and policy creation always agree.
package underwriting

import (
	"github.com/coverledger/coverledger/internal/ledger"
)

const (
	// BaseRiskScore is the starting score before any adjustments.
	BaseRiskScore = 50
	// ClaimPenalty is added per past claim in the profile history.
	ClaimPenalty = 5
	// CoverageDivisor converts coverage amount into score points.
	CoverageDivisor = 10000
	// MaxRiskScore is the highest score policy creation accepts.
	MaxRiskScore = 100

	// Risk tiers for the base premium rate, in basis points.
	lowRiskCeiling = 30
	highRiskFloor  = 70
	minRateBps     = 100
	midRateBps     = 500
	maxRateBps     = 2000

	// rateScale divides out the combined rate and multiplier scaling.
	rateScale = 1_000_000
)

// CategoryMultiplier returns the per-mille premium multiplier for a
// policy category. Unknown categories fall through to a catch-all rate
// rather than an error.
func CategoryMultiplier(category string) uint64 {
	switch category {
	case "auto":
		return 120
	case "health":
		return 150
	case "property":
		return 100
	default:
		return 130
	}
}

// AssessRisk scores a coverage request against the holder's history.
// A nil profile means a first-time user and scores with the defaults.
// The category is part of the quoting contract but does not move the
// score; only the premium rate varies by category. The reputation
// adjustment is signed: above-average reputation lowers the total.
// No upper clamp is applied here; the caller rejects scores above
// MaxRiskScore.
func AssessRisk(profile *ledger.Profile, category string, coverageAmount uint64) uint64 {
	claimsHistory := uint64(0)
	reputation := uint64(ledger.DefaultReputation)
	if profile != nil {
		claimsHistory = profile.ClaimsHistory
		reputation = profile.ReputationScore
	}

	score := int64(BaseRiskScore)
	score += int64(ClaimPenalty) * int64(claimsHistory)
	score += int64(coverageAmount / CoverageDivisor)
	score += int64(ledger.DefaultReputation) - int64(reputation)

	if score < 0 {
		return 0
	}
	return uint64(score)
}

// baseRateBps picks the premium rate tier for a risk score.
func baseRateBps(riskScore uint64) uint64 {
	switch {
	case riskScore < lowRiskCeiling:
		return minRateBps
	case riskScore < highRiskFloor:
		return midRateBps
	default:
		return maxRateBps
	}
}

// Premium computes the premium for a coverage amount at a given risk
// score and category. All arithmetic is integer with truncating division:
// coverage * rate_bps * multiplier / 1_000_000.
func Premium(coverageAmount, riskScore uint64, category string) uint64 {
	return coverageAmount * baseRateBps(riskScore) * CategoryMultiplier(category) / rateScale
}
