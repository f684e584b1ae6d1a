package contract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/coverledger/coverledger/internal/chain"
	"github.com/coverledger/coverledger/internal/fraud"
	"github.com/coverledger/coverledger/internal/ledger"
	"github.com/coverledger/coverledger/internal/traces"
	"github.com/coverledger/coverledger/internal/treasury"
	"github.com/coverledger/coverledger/internal/underwriting"
)

// Publisher pushes workflow events to subscribers. The realtime hub
// implements it; a nil publisher disables events.
type Publisher interface {
	Publish(event string, data any)
}

// Options bound the policies the contract will write.
type Options struct {
	// MaxCoverage is the largest coverage amount create-policy accepts.
	MaxCoverage uint64
	// PolicyTermBlocks is the fixed validity window added to the
	// issuance block.
	PolicyTermBlocks uint64
}

// Service owns the underwriting ledger workflows.
type Service struct {
	mu       sync.Mutex
	store    ledger.Store
	treasury *treasury.Treasury
	clock    chain.Clock
	detector *fraud.Detector
	opts     Options
	pub      Publisher
}

// NewService creates the contract service.
func NewService(store ledger.Store, tr *treasury.Treasury, clock chain.Clock, opts Options) *Service {
	return &Service{
		store:    store,
		treasury: tr,
		clock:    clock,
		detector: fraud.NewDetector(store),
		opts:     opts,
	}
}

// WithPublisher attaches an event publisher.
func (s *Service) WithPublisher(pub Publisher) *Service {
	s.pub = pub
	return s
}

func (s *Service) publish(event string, data any) {
	if s.pub != nil {
		s.pub.Publish(event, data)
	}
}

// profileOrNil reads a profile, mapping absence to nil so the scoring
// functions apply their documented defaults.
func (s *Service) profileOrNil(ctx context.Context, account common.Address) (*ledger.Profile, error) {
	prof, err := s.store.GetProfile(ctx, account)
	if err == ledger.ErrProfileNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return prof, nil
}

// QuotePremium previews the risk score and premium for a coverage
// request without writing anything.
func (s *Service) QuotePremium(ctx context.Context, account common.Address, coverage uint64, category string) (*Quote, error) {
	if coverage == 0 || coverage > s.opts.MaxCoverage {
		return nil, ErrInvalidAmount
	}

	prof, err := s.profileOrNil(ctx, account)
	if err != nil {
		return nil, err
	}

	risk := underwriting.AssessRisk(prof, category, coverage)
	return &Quote{
		Account:        account.Hex(),
		Category:       category,
		CoverageAmount: coverage,
		RiskScore:      risk,
		Premium:        underwriting.Premium(coverage, risk, category),
		Insurable:      risk <= underwriting.MaxRiskScore,
	}, nil
}

// CreatePolicy runs the create-policy workflow: precondition checks in
// order, premium transfer into custody, then the atomic ledger insert.
// The transfer is refunded if the insert fails, so no partial effects
// survive a failed call.
func (s *Service) CreatePolicy(ctx context.Context, holder common.Address, coverage uint64, category string, evidence common.Hash) (*ledger.Policy, error) {
	ctx, span := traces.StartSpan(ctx, "contract.create_policy",
		traces.Account(holder.Hex()), traces.Amount(coverage), traces.Category(category))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	counters, err := s.store.Counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	if counters.Paused {
		return nil, ErrPaused
	}
	if coverage == 0 || coverage > s.opts.MaxCoverage {
		return nil, ErrInvalidAmount
	}

	prof, err := s.profileOrNil(ctx, holder)
	if err != nil {
		return nil, err
	}

	risk := underwriting.AssessRisk(prof, category, coverage)
	if risk > underwriting.MaxRiskScore {
		return nil, ErrInvalidRiskScore
	}
	premium := underwriting.Premium(coverage, risk, category)

	if err := s.treasury.Transfer(holder, premium); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	policy := &ledger.Policy{
		Holder:         holder,
		CoverageAmount: coverage,
		Premium:        premium,
		RiskScore:      risk,
		Category:       category,
		StartBlock:     now,
		EndBlock:       now + s.opts.PolicyTermBlocks,
		Active:         true,
		CreatedAt:      time.Now(),
	}

	id, err := s.store.IssuePolicy(ctx, policy)
	if err != nil {
		if rerr := s.treasury.Refund(holder, premium); rerr != nil {
			return nil, fmt.Errorf("failed to issue policy: %w (refund also failed: %v)", err, rerr)
		}
		return nil, fmt.Errorf("failed to issue policy: %w", err)
	}

	span.SetAttributes(traces.PolicyID(id))
	policiesIssued.Inc()
	premiumCollected.Add(float64(premium))
	riskScores.Observe(float64(risk))
	s.publish("policy.issued", policy)
	return policy, nil
}

// SubmitClaim runs the submit-claim workflow. The approved flag on the
// recorded claim is a recommendation from the fraud score; no funds
// move here.
func (s *Service) SubmitClaim(ctx context.Context, claimant common.Address, policyID uint64, amount uint64, description string, evidence common.Hash) (*ledger.Claim, error) {
	ctx, span := traces.StartSpan(ctx, "contract.submit_claim",
		traces.Account(claimant.Hex()), traces.PolicyID(policyID), traces.Amount(amount))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	counters, err := s.store.Counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	if counters.Paused {
		return nil, ErrPaused
	}

	policy, err := s.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if claimant != policy.Holder {
		return nil, ErrNotPolicyHolder
	}
	if !policy.Active {
		return nil, ErrPolicyExpired
	}
	now := s.clock.Now()
	if now > policy.EndBlock {
		return nil, ErrPolicyExpired
	}
	if amount == 0 || amount > policy.CoverageAmount {
		return nil, ErrInvalidAmount
	}

	score, err := s.detector.Detect(ctx, policyID, amount, claimant, now)
	if err != nil {
		return nil, err
	}
	claim := &ledger.Claim{
		PolicyID:       policyID,
		Claimant:       claimant,
		Amount:         amount,
		Description:    description,
		SubmittedBlock: now,
		Processed:      false,
		Approved:       fraud.Approved(score),
		FraudScore:     score,
		Evidence:       evidence,
		CreatedAt:      time.Now(),
	}

	id, err := s.store.RecordClaim(ctx, claim)
	if err != nil {
		return nil, fmt.Errorf("failed to record claim: %w", err)
	}

	span.SetAttributes(traces.ClaimID(id))
	fraudScores.Observe(float64(score))
	if claim.Approved {
		claimsSubmitted.WithLabelValues("approved").Inc()
		s.publish("claim.submitted", claim)
	} else {
		claimsSubmitted.WithLabelValues("flagged").Inc()
		s.publish("claim.flagged", claim)
	}
	return claim, nil
}

// ProcessClaim is the administrative settlement transition. An approved
// claim pays out from custody to the claimant and is marked processed;
// a flagged claim is marked processed with no funds moving, closing it
// for manual review. Either way the claim can be processed only once.
func (s *Service) ProcessClaim(ctx context.Context, claimID uint64) (*ledger.Claim, error) {
	ctx, span := traces.StartSpan(ctx, "contract.process_claim", traces.ClaimID(claimID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Processed {
		return nil, ledger.ErrClaimProcessed
	}

	if !claim.Approved {
		if err := s.store.MarkClaimProcessed(ctx, claimID, 0); err != nil {
			return nil, fmt.Errorf("failed to close claim: %w", err)
		}
		claim.Processed = true
		claimsProcessed.WithLabelValues("denied").Inc()
		return claim, nil
	}

	if err := s.treasury.Payout(claim.Claimant, claim.Amount); err != nil {
		return nil, err
	}
	if err := s.store.MarkClaimProcessed(ctx, claimID, claim.Amount); err != nil {
		if rerr := s.treasury.Transfer(claim.Claimant, claim.Amount); rerr != nil {
			return nil, fmt.Errorf("failed to process claim: %w (payout reversal also failed: %v)", err, rerr)
		}
		return nil, fmt.Errorf("failed to process claim: %w", err)
	}

	claim.Processed = true
	claimsProcessed.WithLabelValues("paid").Inc()
	s.publish("claim.paid", claim)
	return claim, nil
}

// Pause halts both public workflows.
func (s *Service) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetPaused(ctx, true)
}

// Resume lifts the administrative halt.
func (s *Service) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetPaused(ctx, false)
}

// Counters exposes the nonce and balance state for the admin surface.
func (s *Service) Counters(ctx context.Context) (ledger.Counters, error) {
	return s.store.Counters(ctx)
}
