// Package contract orchestrates the two public workflows, create-policy
// and submit-claim, plus the administrative claim-processing transition.
// Workflows run under a single writer: preconditions are checked in
// order, the first violation short-circuits, and a failed call leaves
// every table and counter exactly as it was.
package contract

import "errors"

var (
	// ErrPaused is returned while the administrative halt is in effect.
	ErrPaused = errors.New("contract is paused")

	// ErrInvalidAmount is returned for a zero or over-limit amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidRiskScore is returned when the assessed risk exceeds
	// the acceptable band for policy creation.
	ErrInvalidRiskScore = errors.New("risk score too high")

	// ErrNotPolicyHolder is returned when the claimant does not own
	// the policy.
	ErrNotPolicyHolder = errors.New("caller is not the policy holder")

	// ErrPolicyExpired is returned for an inactive policy or one past
	// its end block.
	ErrPolicyExpired = errors.New("policy is inactive or expired")
)

// Quote is a pure premium preview. Nothing is persisted.
type Quote struct {
	Account        string `json:"account"`
	Category       string `json:"category"`
	CoverageAmount uint64 `json:"coverageAmount"`
	RiskScore      uint64 `json:"riskScore"`
	Premium        uint64 `json:"premium"`
	Insurable      bool   `json:"insurable"`
}
