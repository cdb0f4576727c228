package services

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

func TestResolveAncestorsWalksChain(t *testing.T) {
	store := newMemStore()

	// E -> D -> C -> B -> A, activation by E.
	a := store.addAccount(models.Account{})
	b := store.addAccount(models.Account{})
	c := store.addAccount(models.Account{})
	d := store.addAccount(models.Account{})
	e := store.addAccount(models.Account{})
	store.link(a, b, models.ReferralEdge{})
	store.link(b, c, models.ReferralEdge{})
	store.link(c, d, models.ReferralEdge{})
	store.link(d, e, models.ReferralEdge{})

	graph := NewReferralGraph(store)
	ancestors, err := graph.ResolveAncestors(context.Background(), e, MaxCommissionLevels)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}

	want := []primitive.ObjectID{d, c, b}
	if len(ancestors) != len(want) {
		t.Fatalf("want %d ancestors, got %d", len(want), len(ancestors))
	}
	for i, ancestor := range ancestors {
		if ancestor.Level != i+1 {
			t.Errorf("ancestor %d: want level %d, got %d", i, i+1, ancestor.Level)
		}
		if ancestor.AccountID != want[i] {
			t.Errorf("ancestor %d: wrong account", i)
		}
	}
}

func TestResolveAncestorsShortChain(t *testing.T) {
	store := newMemStore()
	a := store.addAccount(models.Account{})
	b := store.addAccount(models.Account{})
	store.link(a, b, models.ReferralEdge{})

	graph := NewReferralGraph(store)
	ancestors, err := graph.ResolveAncestors(context.Background(), b, MaxCommissionLevels)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(ancestors) != 1 {
		t.Fatalf("want 1 ancestor, got %d", len(ancestors))
	}
	if ancestors[0].AccountID != a || ancestors[0].Level != 1 {
		t.Fatal("wrong direct referrer")
	}
}

func TestResolveAncestorsStopsOnCycle(t *testing.T) {
	store := newMemStore()

	// Corrupted data: A and B refer each other.
	a := store.addAccount(models.Account{})
	b := store.addAccount(models.Account{})
	store.link(a, b, models.ReferralEdge{})
	store.link(b, a, models.ReferralEdge{})

	graph := NewReferralGraph(store)
	ancestors, err := graph.ResolveAncestors(context.Background(), b, MaxCommissionLevels)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	// The walk pays A at level 1 and must stop before revisiting B.
	if len(ancestors) != 1 {
		t.Fatalf("cycle must terminate after 1 ancestor, got %d", len(ancestors))
	}
}

func TestResolveAncestorsStopsAtFraudEdge(t *testing.T) {
	store := newMemStore()

	a := store.addAccount(models.Account{})
	b := store.addAccount(models.Account{})
	c := store.addAccount(models.Account{})
	store.link(a, b, models.ReferralEdge{FraudSuspected: true})
	store.link(b, c, models.ReferralEdge{})

	graph := NewReferralGraph(store)
	ancestors, err := graph.ResolveAncestors(context.Background(), c, MaxCommissionLevels)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	// B is paid for referring C; the flagged B->A edge stops the walk there.
	if len(ancestors) != 1 {
		t.Fatalf("want walk to stop at the flagged edge, got %d ancestors", len(ancestors))
	}
	if ancestors[0].AccountID != b {
		t.Fatal("level 1 must be the direct referrer")
	}
}

func TestResolveAncestorsNoEdge(t *testing.T) {
	store := newMemStore()
	orphan := store.addAccount(models.Account{})

	graph := NewReferralGraph(store)
	ancestors, err := graph.ResolveAncestors(context.Background(), orphan, MaxCommissionLevels)
	if err != nil {
		t.Fatalf("ResolveAncestors: %v", err)
	}
	if len(ancestors) != 0 {
		t.Fatalf("want no ancestors, got %d", len(ancestors))
	}
}
