// Package watcher expires policies whose coverage window has closed.
//
// Policies are written with a fixed end block and stay marked active in
// storage until something flips them. The watcher polls the ledger clock
// and deactivates every policy whose end block has passed, so listings
// and coverage checks reflect expiry without waiting for the next write
// to that policy.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverledger/coverledger/internal/chain"
)

// ExpiryStore deactivates policies past their end block.
type ExpiryStore interface {
	ExpirePolicies(ctx context.Context, height uint64) (int64, error)
}

// Config for the expiry watcher.
type Config struct {
	SweepInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{SweepInterval: time.Minute}
}

// Watcher periodically sweeps expired policies.
type Watcher struct {
	store  ExpiryStore
	clock  chain.Clock
	config Config
	logger *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// New creates a new expiry watcher.
func New(cfg Config, store ExpiryStore, clock chain.Clock, logger *slog.Logger) *Watcher {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Watcher{
		store:  store,
		clock:  clock,
		config: cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins sweeping in the background.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("expiry watcher started",
		"interval", w.config.SweepInterval,
		"height", w.clock.Now(),
	)
	go w.pollLoop(ctx)
}

// Stop stops the watcher and waits for the sweep loop to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs a single expiry pass at the current clock height.
func (w *Watcher) Sweep(ctx context.Context) error {
	height := w.clock.Now()
	expired, err := w.store.ExpirePolicies(ctx, height)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.logger.Info("policies expired",
			"count", expired,
			"height", height,
		)
	}
	return nil
}
