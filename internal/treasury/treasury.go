// Package treasury is the currency primitive behind policy premiums and
// claim payouts. It keeps per-account balances plus a single custody pot
// owned by the contract; premiums move caller -> custody, payouts move
// custody -> claimant. Every movement is atomic and fails without
// side effects when funds are short.
package treasury

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientFunds is returned when a transfer exceeds the source balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Treasury holds account balances and the contract custody pot.
type Treasury struct {
	mu       sync.RWMutex
	balances map[common.Address]uint64
	custody  uint64
}

// New creates an empty treasury.
func New() *Treasury {
	return &Treasury{balances: make(map[common.Address]uint64)}
}

// Credit deposits funds into an account.
func (t *Treasury) Credit(account common.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] += amount
}

// BalanceOf returns an account's balance. Unknown accounts hold zero.
func (t *Treasury) BalanceOf(account common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account]
}

// SeedCustody primes the custody pot at startup to mirror a persisted
// contract balance. It only raises custody, never lowers it, so calling
// it after movement has begun cannot erase collected premiums.
func (t *Treasury) SeedCustody(amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount > t.custody {
		t.custody = amount
	}
}

// CustodyBalance returns the funds held by the contract.
func (t *Treasury) CustodyBalance() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.custody
}

// Transfer moves funds from an account into contract custody.
// Fails with ErrInsufficientFunds if the account balance is short,
// leaving both sides unchanged.
func (t *Treasury) Transfer(from common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from] < amount {
		return ErrInsufficientFunds
	}
	t.balances[from] -= amount
	t.custody += amount
	return nil
}

// Payout moves funds from contract custody to an account.
func (t *Treasury) Payout(to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.custody < amount {
		return ErrInsufficientFunds
	}
	t.custody -= amount
	t.balances[to] += amount
	return nil
}

// Refund returns custody funds to an account after a failed issue step.
func (t *Treasury) Refund(to common.Address, amount uint64) error {
	return t.Payout(to, amount)
}
