// Package fraud scores claims for fraud signals. Scoring is additive:
// every matching signal contributes its penalty, so a single claim can
// stack several. The sum is deliberately unclamped and can exceed 100
// when the blacklist penalty combines with the others.
package fraud

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/coverledger/coverledger/internal/ledger"
)

const (
	// OversizedPenalty applies when the claim exceeds half the coverage.
	OversizedPenalty = 25
	// FrequentPenalty applies when the claimant last claimed within
	// FrequencyWindow ledger blocks.
	FrequentPenalty = 30
	// RepeatPenalty applies when the claimant has more than
	// RepeatThreshold past claims.
	RepeatPenalty = 20
	// BlacklistPenalty applies to blacklisted claimants and alone is
	// enough to block approval.
	BlacklistPenalty = 100

	// FrequencyWindow is the minimum block distance between claims
	// before the frequency penalty fires.
	FrequencyWindow = 144
	// RepeatThreshold is the claims-history count above which the
	// repeat penalty fires.
	RepeatThreshold = 3

	// ApprovalThreshold is the score at or above which a claim is
	// flagged instead of auto-approved.
	ApprovalThreshold = 50
)

// Score computes the fraud score for a claim against a policy. A nil
// profile scores with first-time defaults: last_claim_block 0 means the
// frequency distance is the full current block height, so the frequency
// penalty only fires in the first FrequencyWindow blocks of the ledger.
func Score(policy *ledger.Policy, claimAmount uint64, profile *ledger.Profile, currentBlock uint64) uint64 {
	claimsHistory := uint64(0)
	lastClaimBlock := uint64(0)
	blacklisted := false
	if profile != nil {
		claimsHistory = profile.ClaimsHistory
		lastClaimBlock = profile.LastClaimBlock
		blacklisted = profile.Blacklisted
	}

	var score uint64
	if claimAmount > policy.CoverageAmount/2 {
		score += OversizedPenalty
	}
	if currentBlock-lastClaimBlock < FrequencyWindow {
		score += FrequentPenalty
	}
	if claimsHistory > RepeatThreshold {
		score += RepeatPenalty
	}
	if blacklisted {
		score += BlacklistPenalty
	}
	return score
}

// Approved reports whether a fraud score is below the auto-approval
// threshold.
func Approved(score uint64) bool {
	return score < ApprovalThreshold
}

// Detector scores claims by loading the policy and claimant profile
// from the ledger store.
type Detector struct {
	store ledger.Store
}

// NewDetector creates a fraud detector backed by the given store.
func NewDetector(store ledger.Store) *Detector {
	return &Detector{store: store}
}

// Detect scores a prospective claim. Returns ledger.ErrPolicyNotFound
// if the policy id does not exist. A missing claimant profile is not an
// error; it scores with defaults.
func (d *Detector) Detect(ctx context.Context, policyID uint64, claimAmount uint64, claimant common.Address, currentBlock uint64) (uint64, error) {
	policy, err := d.store.GetPolicy(ctx, policyID)
	if err != nil {
		return 0, err
	}

	profile, err := d.store.GetProfile(ctx, claimant)
	if err == ledger.ErrProfileNotFound {
		profile = nil
	} else if err != nil {
		return 0, err
	}

	return Score(policy, claimAmount, profile, currentBlock), nil
}
