// Package health provides a registry of named subsystem health checkers.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/coverledger/coverledger/internal/ledger"
)

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker is a function that checks the health of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs all registered checkers and returns the aggregate health
// status plus individual subsystem results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}

// DatabaseChecker pings the database with a short timeout.
func DatabaseChecker(db *sql.DB) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: "database", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "database", Healthy: true}
	}
}

// CounterReader reports contract counters. Satisfied by the ledger store.
type CounterReader interface {
	Counters(ctx context.Context) (ledger.Counters, error)
}

// LedgerChecker verifies the ledger state store is reachable and reports
// whether the contract is paused.
func LedgerChecker(store CounterReader) Checker {
	return func(ctx context.Context) Status {
		c, err := store.Counters(ctx)
		if err != nil {
			return Status{Name: "ledger", Healthy: false, Detail: err.Error()}
		}
		s := Status{Name: "ledger", Healthy: true}
		if c.Paused {
			s.Detail = "paused"
		}
		return s
	}
}

// CustodyReader reports the treasury's custody balance.
type CustodyReader interface {
	CustodyBalance() uint64
}

// TreasuryChecker reports the custody balance held for active policies.
func TreasuryChecker(t CustodyReader) Checker {
	return func(_ context.Context) Status {
		return Status{
			Name:    "treasury",
			Healthy: true,
			Detail:  fmt.Sprintf("custody=%d", t.CustodyBalance()),
		}
	}
}
