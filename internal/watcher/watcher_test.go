package watcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverledger/coverledger/internal/chain"
	"github.com/coverledger/coverledger/internal/ledger"
)

var holder = common.HexToAddress("0xaAaA000000000000000000000000000000000001")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func issuePolicy(t *testing.T, store *ledger.MemoryStore, endBlock uint64) uint64 {
	t.Helper()
	id, err := store.IssuePolicy(context.Background(), &ledger.Policy{
		Holder:         holder,
		CoverageAmount: 100000,
		Premium:        1000,
		Category:       "property",
		StartBlock:     1,
		EndBlock:       endBlock,
		Active:         true,
	})
	require.NoError(t, err)
	return id
}

func TestSweep_ExpiresPastEndBlock(t *testing.T) {
	store := ledger.NewMemoryStore()
	expired := issuePolicy(t, store, 50)
	current := issuePolicy(t, store, 500)

	clock := chain.NewManual(100)
	w := New(DefaultConfig(), store, clock, testLogger())

	require.NoError(t, w.Sweep(context.Background()))

	p, err := store.GetPolicy(context.Background(), expired)
	require.NoError(t, err)
	assert.False(t, p.Active)

	p, err = store.GetPolicy(context.Background(), current)
	require.NoError(t, err)
	assert.True(t, p.Active)
}

func TestSweep_EndBlockBoundary(t *testing.T) {
	store := ledger.NewMemoryStore()
	id := issuePolicy(t, store, 100)

	clock := chain.NewManual(100)
	w := New(DefaultConfig(), store, clock, testLogger())

	// A policy is covered through its end block inclusive.
	require.NoError(t, w.Sweep(context.Background()))
	p, err := store.GetPolicy(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, p.Active)

	clock.Advance(1)
	require.NoError(t, w.Sweep(context.Background()))
	p, err = store.GetPolicy(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestWatcher_BackgroundSweep(t *testing.T) {
	store := ledger.NewMemoryStore()
	id := issuePolicy(t, store, 10)

	clock := chain.NewManual(1000)
	w := New(Config{SweepInterval: 10 * time.Millisecond}, store, clock, testLogger())

	w.Start(context.Background())
	defer w.Stop()

	deadline := time.After(2 * time.Second)
	for {
		p, err := store.GetPolicy(context.Background(), id)
		require.NoError(t, err)
		if !p.Active {
			return
		}
		select {
		case <-deadline:
			t.Fatal("policy was not expired by background sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWatcher_StopWaitsForLoop(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := chain.NewManual(1)
	w := New(Config{SweepInterval: time.Millisecond}, store, clock, testLogger())

	w.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	w.Stop()

	select {
	case <-w.done:
	default:
		t.Fatal("sweep loop still running after Stop")
	}
}

func TestNew_DefaultsInterval(t *testing.T) {
	w := New(Config{}, ledger.NewMemoryStore(), chain.NewManual(0), testLogger())
	assert.Equal(t, DefaultConfig().SweepInterval, w.config.SweepInterval)
}
