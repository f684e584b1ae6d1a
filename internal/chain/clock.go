// Package chain provides the ledger-sequence clock.
//
// Every expiry window and claim-frequency check in the system is denominated
// in sequence marks ("blocks"), not wall time. The clock is an explicit
// collaborator passed into the workflows so the scoring pipeline stays
// deterministic and testable. Nothing reads time out of the environment.
package chain

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Clock supplies the current ledger-sequence mark. Marks are monotonically
// increasing and never reset.
type Clock interface {
	Now() uint64
}

// Manual is a hand-advanced clock for tests and deterministic replays.
type Manual struct {
	mu     sync.Mutex
	height uint64
}

// NewManual creates a manual clock starting at the given height.
func NewManual(height uint64) *Manual {
	return &Manual{height: height}
}

func (m *Manual) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

// Advance moves the clock forward by n marks and returns the new height.
func (m *Manual) Advance(n uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += n
	return m.height
}

// Set jumps the clock to the given height. Heights only move forward;
// a lower value is ignored.
func (m *Manual) Set(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if height > m.height {
		m.height = height
	}
}

// Ticker advances the sequence by one mark every block interval.
// It is the production clock when no external chain supplies heights.
type Ticker struct {
	height    atomic.Uint64
	interval  time.Duration
	onAdvance func(uint64)
	startOnce sync.Once
}

// NewTicker creates a ticking clock starting at the given height.
func NewTicker(start uint64, interval time.Duration) *Ticker {
	t := &Ticker{interval: interval}
	t.height.Store(start)
	return t
}

// OnAdvance registers a callback invoked with each new height, letting the
// owner persist the sequence so a restart resumes rather than regresses.
// Must be set before Start; the callback runs on the ticker goroutine.
func (t *Ticker) OnAdvance(fn func(height uint64)) {
	t.onAdvance = fn
}

func (t *Ticker) Now() uint64 {
	return t.height.Load()
}

// Start begins advancing the clock. Safe to call once; exits when ctx is done.
func (t *Ticker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					h := t.height.Add(1)
					if t.onAdvance != nil {
						t.onAdvance(h)
					}
				}
			}
		}()
	})
}
