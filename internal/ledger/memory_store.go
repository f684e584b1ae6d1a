package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore is the in-memory ledger store for demo/development mode.
// A single mutex covers every transition: the execution model is strictly
// sequential single-writer, so a compound operation is atomic by holding
// the lock for its whole read-modify-write.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[uint64]*Policy
	claims   map[uint64]*Claim
	profiles map[common.Address]*Profile
	counters Counters
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[uint64]*Policy),
		claims:   make(map[uint64]*Claim),
		profiles: make(map[common.Address]*Profile),
	}
}

func (m *MemoryStore) GetPolicy(ctx context.Context, id uint64) (*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetClaim(ctx context.Context, id uint64) (*Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, account common.Address) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[account]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListPoliciesByHolder(ctx context.Context, holder common.Address, beforeID uint64, limit int) ([]*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := m.counters.PolicyNonce
	if beforeID > 0 && beforeID-1 < start {
		start = beforeID - 1
	}

	var result []*Policy
	// Walk ids descending so the newest policies come first.
	for id := start; id >= 1 && len(result) < limit; id-- {
		if p, ok := m.policies[id]; ok && p.Holder == holder {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) ListClaimsByPolicy(ctx context.Context, policyID uint64, beforeID uint64, limit int) ([]*Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := m.counters.ClaimNonce
	if beforeID > 0 && beforeID-1 < start {
		start = beforeID - 1
	}

	var result []*Claim
	for id := start; id >= 1 && len(result) < limit; id-- {
		if c, ok := m.claims[id]; ok && c.PolicyID == policyID {
			cp := *c
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) IssuePolicy(ctx context.Context, p *Policy) (uint64, error) {
	done := observeOp("issue_policy")
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.counters.PolicyNonce + 1
	if _, exists := m.policies[id]; exists {
		return 0, ErrPolicyExists
	}

	cp := *p
	cp.ID = id
	m.policies[id] = &cp

	prof, ok := m.profiles[p.Holder]
	if !ok {
		prof = NewProfile(p.Holder)
		m.profiles[p.Holder] = prof
	}
	prof.TotalPolicies++
	prof.UpdatedAt = time.Now()

	m.counters.PolicyNonce = id
	m.counters.Balance += p.Premium
	LedgerPoliciesIssued.Set(float64(id))
	LedgerReserveBalance.Set(float64(m.counters.Balance))

	p.ID = id
	return id, nil
}

func (m *MemoryStore) RecordClaim(ctx context.Context, c *Claim) (uint64, error) {
	done := observeOp("record_claim")
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	pol, ok := m.policies[c.PolicyID]
	if !ok {
		return 0, ErrPolicyNotFound
	}

	id := m.counters.ClaimNonce + 1
	if _, exists := m.claims[id]; exists {
		return 0, ErrClaimExists
	}

	cp := *c
	cp.ID = id
	m.claims[id] = &cp

	pol.ClaimsCount++
	m.counters.ClaimNonce = id
	LedgerClaimsRecorded.Set(float64(id))

	c.ID = id
	return id, nil
}

func (m *MemoryStore) MarkClaimProcessed(ctx context.Context, claimID uint64, payout uint64) error {
	done := observeOp("mark_claim_processed")
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[claimID]
	if !ok {
		return ErrClaimNotFound
	}
	if c.Processed {
		return ErrClaimProcessed
	}
	if payout > m.counters.Balance {
		return ErrInsufficientReserve
	}

	c.Processed = true
	m.counters.Balance -= payout
	LedgerReserveBalance.Set(float64(m.counters.Balance))
	return nil
}

func (m *MemoryStore) PutProfile(ctx context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	cp.UpdatedAt = time.Now()
	m.profiles[p.Account] = &cp
	return nil
}

func (m *MemoryStore) ExpirePolicies(ctx context.Context, height uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired int64
	for _, p := range m.policies {
		if p.Active && p.EndBlock < height {
			p.Active = false
			expired++
		}
	}
	return expired, nil
}

func (m *MemoryStore) Counters(ctx context.Context) (Counters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters, nil
}

func (m *MemoryStore) SetPaused(ctx context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Paused = paused
	return nil
}

func (m *MemoryStore) SetHeight(ctx context.Context, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if height > m.counters.Height {
		m.counters.Height = height
	}
	return nil
}
