package fraud

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverledger/coverledger/internal/ledger"
)

var claimant = common.HexToAddress("0x3333333333333333333333333333333333333333")

func coveragePolicy(coverage uint64) *ledger.Policy {
	return &ledger.Policy{
		Holder:         claimant,
		CoverageAmount: coverage,
		Category:       "auto",
		Active:         true,
	}
}

func TestScoreCleanClaim(t *testing.T) {
	prof := &ledger.Profile{ClaimsHistory: 1, LastClaimBlock: 100, ReputationScore: 50}
	// half of coverage, well past the frequency window
	assert.Equal(t, uint64(0), Score(coveragePolicy(100000), 50000, prof, 10000))
}

func TestScoreOversizedClaim(t *testing.T) {
	prof := &ledger.Profile{}
	assert.Equal(t, uint64(0), Score(coveragePolicy(100000), 50000, prof, 10000))
	assert.Equal(t, uint64(OversizedPenalty), Score(coveragePolicy(100000), 50001, prof, 10000))
}

func TestScoreFrequentClaims(t *testing.T) {
	prof := &ledger.Profile{LastClaimBlock: 1000}

	assert.Equal(t, uint64(FrequentPenalty), Score(coveragePolicy(100000), 1000, prof, 1143))
	assert.Equal(t, uint64(0), Score(coveragePolicy(100000), 1000, prof, 1144))
}

func TestScoreFreshProfileFrequency(t *testing.T) {
	// last_claim_block defaults to 0, so distance equals the current
	// block height and the penalty only fires early in the ledger.
	assert.Equal(t, uint64(FrequentPenalty), Score(coveragePolicy(100000), 1000, nil, 143))
	assert.Equal(t, uint64(0), Score(coveragePolicy(100000), 1000, nil, 144))
}

func TestScoreRepeatClaimant(t *testing.T) {
	three := &ledger.Profile{ClaimsHistory: 3, LastClaimBlock: 1}
	four := &ledger.Profile{ClaimsHistory: 4, LastClaimBlock: 1}

	assert.Equal(t, uint64(0), Score(coveragePolicy(100000), 1000, three, 10000))
	assert.Equal(t, uint64(RepeatPenalty), Score(coveragePolicy(100000), 1000, four, 10000))
}

func TestScoreBlacklisted(t *testing.T) {
	prof := &ledger.Profile{Blacklisted: true, LastClaimBlock: 1}
	assert.Equal(t, uint64(BlacklistPenalty), Score(coveragePolicy(100000), 1000, prof, 10000))
}

func TestScoreSignalsStack(t *testing.T) {
	prof := &ledger.Profile{
		ClaimsHistory:  5,
		LastClaimBlock: 9990,
		Blacklisted:    true,
	}
	// oversized + frequent + repeat + blacklisted, unclamped
	assert.Equal(t, uint64(175), Score(coveragePolicy(100000), 60000, prof, 10000))
}

func TestApprovedThresholdBoundary(t *testing.T) {
	assert.True(t, Approved(49))
	assert.False(t, Approved(50))
	assert.False(t, Approved(175))
}

func TestDetectorMissingPolicy(t *testing.T) {
	d := NewDetector(ledger.NewMemoryStore())

	_, err := d.Detect(context.Background(), 42, 1000, claimant, 10000)
	assert.ErrorIs(t, err, ledger.ErrPolicyNotFound)
}

func TestDetectorMissingProfileScoresDefaults(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	// Issue through another holder so the claimant has no profile.
	other := common.HexToAddress("0x04")
	pid, err := store.IssuePolicy(ctx, &ledger.Policy{
		Holder:         other,
		CoverageAmount: 100000,
		Premium:        500,
		Active:         true,
	})
	require.NoError(t, err)

	d := NewDetector(store)
	score, err := d.Detect(ctx, pid, 1000, claimant, 10000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), score)
}

func TestDetectorScoresStoredProfile(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	pid, err := store.IssuePolicy(ctx, &ledger.Policy{
		Holder:         claimant,
		CoverageAmount: 100000,
		Premium:        500,
		Active:         true,
	})
	require.NoError(t, err)

	require.NoError(t, store.PutProfile(ctx, &ledger.Profile{
		Account:       claimant,
		ClaimsHistory: 6,
		Blacklisted:   true,
	}))

	d := NewDetector(store)
	score, err := d.Detect(ctx, pid, 60000, claimant, 100)
	require.NoError(t, err)
	// oversized + frequent (fresh last_claim_block) + repeat + blacklisted
	assert.Equal(t, uint64(175), score)
}
