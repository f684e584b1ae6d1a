// Package ledger is the authoritative state store for policies, claims,
// and underwriting profiles.
//
// Everything the scoring pipeline reads or writes lives here: three keyed
// tables (policies, claims, profiles) plus the contract counters (policy
// nonce, claim nonce, contract balance, pause flag). State transitions are
// exposed as compound operations that commit all-or-nothing: a failed
// workflow leaves every table and counter exactly as it was.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrPolicyNotFound  = errors.New("policy not found")
	ErrClaimNotFound   = errors.New("claim not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrPolicyExists    = errors.New("policy id already exists")
	ErrClaimExists     = errors.New("claim id already exists")
	ErrClaimProcessed  = errors.New("claim already processed")
	ErrInsufficientReserve = errors.New("contract balance below payout amount")
)

// Policy represents one underwriting contract.
//
// Premium and RiskScore are fixed at issuance; ClaimsCount is the only
// field a later workflow mutates. Coverage and premium amounts are in
// currency minor units.
type Policy struct {
	ID             uint64         `json:"id"`
	Holder         common.Address `json:"holder"`
	CoverageAmount uint64         `json:"coverageAmount"`
	Premium        uint64         `json:"premium"`
	RiskScore      uint64         `json:"riskScore"`
	Category       string         `json:"category"`
	StartBlock     uint64         `json:"startBlock"`
	EndBlock       uint64         `json:"endBlock"`
	Active         bool           `json:"active"`
	ClaimsCount    uint64         `json:"claimsCount"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Claim represents one payout request filed against a policy.
//
// Approved records the fraud detector's recommendation at submission time;
// Processed flips only through the separate payout transition.
type Claim struct {
	ID             uint64         `json:"id"`
	PolicyID       uint64         `json:"policyId"`
	Claimant       common.Address `json:"claimant"`
	Amount         uint64         `json:"amount"`
	Description    string         `json:"description"`
	SubmittedBlock uint64         `json:"submittedBlock"`
	Processed      bool           `json:"processed"`
	Approved       bool           `json:"approved"`
	FraudScore     uint64         `json:"fraudScore"`
	Evidence       common.Hash    `json:"evidence"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Profile is an account's underwriting history, one per identity.
//
// TotalPolicies is bumped by policy issuance. ClaimsHistory,
// ReputationScore, LastClaimBlock and Blacklisted are read by the scoring
// functions but no workflow writes them back; they change only through
// explicit administrative seeding (PutProfile).
type Profile struct {
	Account         common.Address `json:"account"`
	TotalPolicies   uint64         `json:"totalPolicies"`
	ClaimsHistory   uint64         `json:"claimsHistory"`
	ReputationScore uint64         `json:"reputationScore"`
	LastClaimBlock  uint64         `json:"lastClaimBlock"`
	Blacklisted     bool           `json:"blacklisted"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// DefaultReputation is the neutral standing assigned to first-touch profiles.
const DefaultReputation = 50

// NewProfile returns the default profile for an account that has no
// recorded history. This is the single default-construction rule callers
// apply when a lookup reports ErrProfileNotFound.
func NewProfile(account common.Address) *Profile {
	return &Profile{
		Account:         account,
		ReputationScore: DefaultReputation,
		UpdatedAt:       time.Now(),
	}
}

// Counters is the process-wide monotonic contract state. PolicyNonce and
// ClaimNonce hold the last issued identity; Balance is premium custody in
// minor units; Height is the last clock height the process recorded, so a
// restarted clock resumes where the previous one stopped.
type Counters struct {
	PolicyNonce uint64 `json:"policyNonce"`
	ClaimNonce  uint64 `json:"claimNonce"`
	Balance     uint64 `json:"balance"`
	Height      uint64 `json:"height"`
	Paused      bool   `json:"paused"`
}

// Store persists ledger state.
//
// IssuePolicy, RecordClaim and MarkClaimProcessed are compound transitions:
// every read-modify-write inside one of them commits together or not at
// all. Identity assignment happens inside the transition (nonce advance is
// part of the same transaction), so a failed call never consumes an id.
type Store interface {
	GetPolicy(ctx context.Context, id uint64) (*Policy, error)
	GetClaim(ctx context.Context, id uint64) (*Claim, error)
	GetProfile(ctx context.Context, account common.Address) (*Profile, error)
	// Listings walk ids descending. beforeID bounds the page to ids
	// strictly below it; zero means start from the newest.
	ListPoliciesByHolder(ctx context.Context, holder common.Address, beforeID uint64, limit int) ([]*Policy, error)
	ListClaimsByPolicy(ctx context.Context, policyID uint64, beforeID uint64, limit int) ([]*Claim, error)

	// IssuePolicy assigns the next policy id to p, inserts it, bumps the
	// holder's total_policies (creating the profile with defaults when
	// absent), and adds the premium to the contract balance.
	IssuePolicy(ctx context.Context, p *Policy) (uint64, error)

	// RecordClaim assigns the next claim id to c, inserts it, and bumps the
	// owning policy's claims_count. Fails with ErrPolicyNotFound if the
	// policy is absent.
	RecordClaim(ctx context.Context, c *Claim) (uint64, error)

	// MarkClaimProcessed flips the claim's processed flag and deducts the
	// payout (zero for review-routed claims) from the contract balance.
	MarkClaimProcessed(ctx context.Context, claimID uint64, payout uint64) error

	// PutProfile writes a profile verbatim. Administrative seeding only
	// (blacklisting, reputation adjustment); workflows never call it.
	PutProfile(ctx context.Context, p *Profile) error

	// ExpirePolicies deactivates every active policy whose end block is
	// below height and reports how many were expired.
	ExpirePolicies(ctx context.Context, height uint64) (int64, error)

	Counters(ctx context.Context) (Counters, error)
	SetPaused(ctx context.Context, paused bool) error

	// SetHeight records the clock height. Heights only move forward;
	// a value at or below the recorded one is a no-op.
	SetHeight(ctx context.Context, height uint64) error
}
