package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

// recordingNotifier captures pushes for assertions.
type recordingNotifier struct {
	mu          sync.Mutex
	commissions []primitive.ObjectID
	tierChanges []TierTransition
}

func (n *recordingNotifier) CommissionPosted(recipientID primitive.ObjectID, _ models.CommissionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.commissions = append(n.commissions, recipientID)
}

func (n *recordingNotifier) TierChanged(_ primitive.ObjectID, transition TierTransition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tierChanges = append(n.tierChanges, transition)
}

func newEngineFixture(t *testing.T) (*memStore, *Orchestrator, *recordingNotifier, []primitive.ObjectID) {
	t.Helper()
	store := newMemStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []primitive.ObjectID
	for i := 0; i < 4; i++ {
		account := models.Account{CreatedAt: now}
		InitAgent(&account, now)
		ids = append(ids, store.addAccount(account))
	}
	// Chain ids[3] -> ids[2] -> ids[1] -> ids[0].
	store.link(ids[0], ids[1], models.ReferralEdge{CreatedAt: now})
	store.link(ids[1], ids[2], models.ReferralEdge{CreatedAt: now})
	store.link(ids[2], ids[3], models.ReferralEdge{CreatedAt: now})

	ledger := NewCommissionLedger(store, store, allowAllGate{}, NewReferralGraph(store), store)
	progression := NewTierProgression(store)
	progression.now = func() time.Time { return now }
	notifier := &recordingNotifier{}
	orchestrator := NewOrchestrator(ledger, progression, notifier)
	return store, orchestrator, notifier, ids
}

func TestActivateUserEndToEnd(t *testing.T) {
	store, orchestrator, notifier, ids := newEngineFixture(t)
	activating := ids[3]

	if err := orchestrator.ActivateUser(context.Background(), activating, 100, "act-1"); err != nil {
		t.Fatalf("ActivateUser: %v", err)
	}

	// Commission cascade plus welcome bonus.
	if got := store.balance(ids[2]); !almostEqual(got, 25.00) {
		t.Errorf("level 1 balance: want 25.00, got %.2f", got)
	}
	if got := store.balance(ids[1]); !almostEqual(got, 5.00) {
		t.Errorf("level 2 balance: want 5.00, got %.2f", got)
	}
	if got := store.balance(ids[0]); !almostEqual(got, 2.50) {
		t.Errorf("level 3 balance: want 2.50, got %.2f", got)
	}
	if got := store.balance(activating); !almostEqual(got, WelcomeBonusAmount) {
		t.Errorf("activating user: want welcome bonus %.2f, got %.2f", WelcomeBonusAmount, got)
	}

	// Every paid ancestor gains one unit of challenge progress.
	for _, id := range ids[:3] {
		agent, _ := store.Account(context.Background(), id)
		if agent.CumulativeReferrals != 1 {
			t.Errorf("agent %s: want 1 qualifying referral, got %d", id.Hex(), agent.CumulativeReferrals)
		}
	}
	// The activating user referred nobody and gains none.
	if agent, _ := store.Account(context.Background(), activating); agent.CumulativeReferrals != 0 {
		t.Errorf("activating user must gain no progress, got %d", agent.CumulativeReferrals)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.commissions) != 3 {
		t.Errorf("want 3 commission pushes, got %d", len(notifier.commissions))
	}
}

func TestActivateUserReplayChangesNothing(t *testing.T) {
	store, orchestrator, notifier, ids := newEngineFixture(t)
	activating := ids[3]

	for i := 0; i < 3; i++ {
		if err := orchestrator.ActivateUser(context.Background(), activating, 100, "act-1"); err != nil {
			t.Fatalf("ActivateUser call %d: %v", i+1, err)
		}
	}

	if got := store.balance(ids[2]); !almostEqual(got, 25.00) {
		t.Errorf("replay double-paid commission: balance %.2f", got)
	}
	if got := store.balance(activating); !almostEqual(got, WelcomeBonusAmount) {
		t.Errorf("replay double-paid welcome bonus: balance %.2f", got)
	}
	for _, id := range ids[:3] {
		agent, _ := store.Account(context.Background(), id)
		if agent.CumulativeReferrals != 1 {
			t.Errorf("replay double-counted progress for %s: %d", id.Hex(), agent.CumulativeReferrals)
		}
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.commissions) != 3 {
		t.Errorf("replays must not push again, got %d pushes", len(notifier.commissions))
	}
}

func TestDistinctActivationsAccumulate(t *testing.T) {
	store, orchestrator, _, ids := newEngineFixture(t)
	activating := ids[3]

	if err := orchestrator.ActivateUser(context.Background(), activating, 100, "act-1"); err != nil {
		t.Fatalf("ActivateUser: %v", err)
	}
	if err := orchestrator.ActivateUser(context.Background(), activating, 50, "act-2"); err != nil {
		t.Fatalf("ActivateUser: %v", err)
	}

	// Flat amounts: the second activation pays the same cascade again.
	if got := store.balance(ids[2]); !almostEqual(got, 50.00) {
		t.Errorf("want 50.00 after two activations, got %.2f", got)
	}
	agent, _ := store.Account(context.Background(), ids[2])
	if agent.CumulativeReferrals != 2 {
		t.Errorf("want 2 qualifying referrals, got %d", agent.CumulativeReferrals)
	}
}
