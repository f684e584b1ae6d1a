package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/coverledger/coverledger/internal/ledger"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

var (
	holderA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	holderB = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: "policy.issued", Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Events: []string{"claim.submitted", "claim.flagged"},
	}}

	submitted := &Event{Type: "claim.submitted"}
	flagged := &Event{Type: "claim.flagged"}
	issued := &Event{Type: "policy.issued"}

	if !h.shouldSend(client, submitted) {
		t.Error("Should receive claim.submitted events")
	}
	if !h.shouldSend(client, flagged) {
		t.Error("Should receive claim.flagged events")
	}
	if h.shouldSend(client, issued) {
		t.Error("Should NOT receive policy.issued events")
	}
}

func TestShouldSend_AccountFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Accounts: []string{holderA.Hex()},
	}}

	matchingPolicy := &Event{
		Type: "policy.issued",
		Data: &ledger.Policy{ID: 1, Holder: holderA},
	}
	otherPolicy := &Event{
		Type: "policy.issued",
		Data: &ledger.Policy{ID: 2, Holder: holderB},
	}
	matchingClaim := &Event{
		Type: "claim.submitted",
		Data: &ledger.Claim{ID: 1, PolicyID: 1, Claimant: holderA},
	}

	if !h.shouldSend(client, matchingPolicy) {
		t.Error("Should match on policy holder")
	}
	if h.shouldSend(client, otherPolicy) {
		t.Error("Should NOT match unrelated holders")
	}
	if !h.shouldSend(client, matchingClaim) {
		t.Error("Should match on claimant")
	}
}

func TestShouldSend_PolicyIDFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		PolicyIDs: []uint64{7},
	}}

	matching := &Event{
		Type: "claim.paid",
		Data: &ledger.Claim{ID: 3, PolicyID: 7, Claimant: holderA},
	}
	other := &Event{
		Type: "claim.paid",
		Data: &ledger.Claim{ID: 4, PolicyID: 8, Claimant: holderA},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on policy id")
	}
	if h.shouldSend(client, other) {
		t.Error("Should NOT match other policies")
	}
}

func TestShouldSend_MinAmountFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinAmount: 10000,
	}}

	large := &Event{
		Type: "claim.submitted",
		Data: &ledger.Claim{Amount: 15000},
	}
	small := &Event{
		Type: "claim.submitted",
		Data: &ledger.Claim{Amount: 5000},
	}

	if !h.shouldSend(client, large) {
		t.Error("Should receive large claim")
	}
	if h.shouldSend(client, small) {
		t.Error("Should NOT receive small claim")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: "policy.issued"}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_UnknownPayload(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Accounts: []string{holderA.Hex()},
	}}

	// Payload types without filterable fields never match an account filter
	event := &Event{
		Type: "policy.issued",
		Data: "string data not a workflow payload",
	}

	if h.shouldSend(client, event) {
		t.Error("Unextractable payload should not match an account filter")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_PublishAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Publish("policy.issued", &ledger.Policy{ID: 1, Holder: holderA})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_PublishToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Publish("claim.paid", &ledger.Claim{ID: 9, PolicyID: 2, Claimant: holderB, Amount: 5000})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredPublish(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants payouts
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{Events: []string{"claim.paid"}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Issue a policy (should be filtered out)
	h.Publish("policy.issued", &ledger.Policy{ID: 1, Holder: holderA})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive policy.issued event")
	default:
		// Good - filtered out
	}

	// Pay a claim (should be received)
	h.Publish("claim.paid", &ledger.Claim{ID: 1, PolicyID: 1, Claimant: holderA})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive claim.paid event")
	}
}
