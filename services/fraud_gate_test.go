package services

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

func newGateFixture() (*memStore, *FraudGate, primitive.ObjectID, primitive.ObjectID) {
	store := newMemStore()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	referrerID := store.addAccount(models.Account{
		RegistrationIP:    "203.0.113.10",
		DeviceFingerprint: "device-referrer",
		CreatedAt:         base.Add(-30 * 24 * time.Hour),
	})
	refereeID := store.addAccount(models.Account{
		RegistrationIP:    "198.51.100.7",
		DeviceFingerprint: "device-referee",
		CreatedAt:         base,
	})
	store.link(referrerID, refereeID, models.ReferralEdge{
		OriginIP:                "198.51.100.7",
		OriginDeviceFingerprint: "device-referee",
		CreatedAt:               base,
	})

	gate := NewFraudGate(store, store, store, store, nil, DefaultFraudConfig())
	return store, gate, referrerID, refereeID
}

func TestFraudGateAllowsCleanEdge(t *testing.T) {
	store, gate, referrerID, refereeID := newGateFixture()

	decision, err := gate.Evaluate(context.Background(), referrerID, refereeID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected edge allowed, got reasons %v", decision.Reasons)
	}
	if len(store.audits) != 0 {
		t.Fatalf("no audit expected for allowed edge, got %d", len(store.audits))
	}
}

func TestFraudGateRejectsSelfReferral(t *testing.T) {
	store, gate, referrerID, _ := newGateFixture()
	store.link(referrerID, referrerID, models.ReferralEdge{})

	decision, err := gate.Evaluate(context.Background(), referrerID, referrerID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatal("self referral must be rejected")
	}
	if !containsReason(decision.Reasons, models.FraudReasonSelfReferral) {
		t.Fatalf("want reason %q, got %v", models.FraudReasonSelfReferral, decision.Reasons)
	}
}

func TestFraudGateRejectsSharedDevice(t *testing.T) {
	store, gate, referrerID, refereeID := newGateFixture()
	store.edges[refereeID].OriginDeviceFingerprint = "device-referrer"

	decision, err := gate.Evaluate(context.Background(), referrerID, refereeID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatal("shared device must be rejected")
	}
	if !containsReason(decision.Reasons, models.FraudReasonSharedDevice) {
		t.Fatalf("want reason %q, got %v", models.FraudReasonSharedDevice, decision.Reasons)
	}
	if len(store.audits) != 1 {
		t.Fatalf("want one audit record, got %d", len(store.audits))
	}
}

func TestFraudGateRejectsSameSubnetRecentSignup(t *testing.T) {
	store, gate, referrerID, refereeID := newGateFixture()
	// Same /24 as the referrer's registration IP, registered within the
	// recency window.
	store.edges[refereeID].OriginIP = "203.0.113.99"
	store.edges[refereeID].CreatedAt = store.accounts[referrerID].CreatedAt.Add(time.Hour)

	decision, err := gate.Evaluate(context.Background(), referrerID, refereeID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatal("same-subnet recent signup must be rejected")
	}
	if !containsReason(decision.Reasons, models.FraudReasonIPSimilarity) {
		t.Fatalf("want reason %q, got %v", models.FraudReasonIPSimilarity, decision.Reasons)
	}
}

func TestFraudGateAllowsSameSubnetAfterRecencyWindow(t *testing.T) {
	store, gate, referrerID, refereeID := newGateFixture()
	store.edges[refereeID].OriginIP = "203.0.113.99"
	store.edges[refereeID].CreatedAt = store.accounts[referrerID].CreatedAt.Add(30 * 24 * time.Hour)

	decision, err := gate.Evaluate(context.Background(), referrerID, refereeID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("stale same-subnet signup should pass, got %v", decision.Reasons)
	}
}

func TestFraudGateRejectsRapidSignups(t *testing.T) {
	store, gate, referrerID, refereeID := newGateFixture()
	store.recent[referrerID] = DefaultFraudConfig().MaxReferralsPerWindow + 1

	decision, err := gate.Evaluate(context.Background(), referrerID, refereeID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatal("burst of signups must be rejected")
	}
	if !containsReason(decision.Reasons, models.FraudReasonRapidSignup) {
		t.Fatalf("want reason %q, got %v", models.FraudReasonRapidSignup, decision.Reasons)
	}
}

func TestFraudGateFailsClosedOnCheckError(t *testing.T) {
	store, gate, referrerID, refereeID := newGateFixture()
	store.counterErr = errCounterDown

	decision, err := gate.Evaluate(context.Background(), referrerID, refereeID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatal("gate must fail closed when a check cannot complete")
	}
	if !containsReason(decision.Reasons, models.FraudReasonCheckError) {
		t.Fatalf("want reason %q, got %v", models.FraudReasonCheckError, decision.Reasons)
	}
	if len(store.audits) != 1 {
		t.Fatalf("want one audit record, got %d", len(store.audits))
	}
}

func TestSameSubnet(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		bits int
		want bool
	}{
		{"same /24", "203.0.113.10", "203.0.113.200", 24, true},
		{"different /24", "203.0.113.10", "203.0.114.10", 24, false},
		{"identical", "10.0.0.1", "10.0.0.1", 24, true},
		{"unparseable equal", "not-an-ip", "not-an-ip", 24, true},
		{"unparseable different", "not-an-ip", "10.0.0.1", 24, false},
		{"ipv6 same /48", "2001:db8:1::1", "2001:db8:1::ffff", 24, true},
		{"ipv6 different", "2001:db8:1::1", "2001:db9:1::1", 24, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameSubnet(tt.a, tt.b, tt.bits); got != tt.want {
				t.Errorf("sameSubnet(%q, %q, %d) = %v, want %v", tt.a, tt.b, tt.bits, got, tt.want)
			}
		})
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
