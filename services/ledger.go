// services/ledger.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

// Flat commission amounts per ancestor level. Independent of the activation
// amount, which is recorded on each event for audit only.
var CommissionAmounts = [MaxCommissionLevels]float64{25.00, 5.00, 2.50}

// WelcomeBonusAmount is the one-time credit paid to the activating user.
const WelcomeBonusAmount = 3.00

// creditRetries bounds how often a conflicted credit is retried before the
// level is surfaced as a settlement failure.
const creditRetries = 3

// LedgerStore persists the append-only commission ledger. PostCredit applies
// the event insert and the recipient balance increment as one atomic unit
// and returns ErrDuplicateActivation when the (activationEventId, level)
// pair already exists, ErrLedgerWriteConflict on transient failure.
type LedgerStore interface {
	EventsByActivation(ctx context.Context, activationEventID string) ([]models.CommissionEvent, error)
	EventsForRecipient(ctx context.Context, accountID primitive.ObjectID) ([]models.CommissionEvent, error)
	PostCredit(ctx context.Context, event models.CommissionEvent) (models.CommissionEvent, error)
	RecordRejection(ctx context.Context, event models.CommissionEvent) (models.CommissionEvent, error)
	PayWelcomeBonus(ctx context.Context, bonus models.WelcomeBonus) error
}

// LedgerEdgeStore resolves the direct edge and flags it when the fraud gate
// rejects it.
type LedgerEdgeStore interface {
	ByReferee(ctx context.Context, refereeID primitive.ObjectID) (*models.ReferralEdge, error)
	MarkFraudSuspected(ctx context.Context, refereeID primitive.ObjectID, reason string) error
}

// Gate is the fraud gate contract the ledger depends on.
type Gate interface {
	Evaluate(ctx context.Context, referrerID, refereeID primitive.ObjectID) (Decision, error)
}

// AncestorResolver is the referral graph contract the ledger depends on.
type AncestorResolver interface {
	ResolveAncestors(ctx context.Context, refereeID primitive.ObjectID, maxLevels int) ([]models.Ancestor, error)
}

// RecipientChecker verifies a commission recipient exists before crediting.
type RecipientChecker interface {
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// CommissionLedger turns one paid activation into the per-level commission
// cascade. Every mutation is keyed by the activation event id, so replays
// are no-ops.
type CommissionLedger struct {
	store    LedgerStore
	edges    LedgerEdgeStore
	gate     Gate
	graph    AncestorResolver
	accounts RecipientChecker
}

func NewCommissionLedger(store LedgerStore, edges LedgerEdgeStore, gate Gate, graph AncestorResolver, accounts RecipientChecker) *CommissionLedger {
	return &CommissionLedger{
		store:    store,
		edges:    edges,
		gate:     gate,
		graph:    graph,
		accounts: accounts,
	}
}

// Settle computes and records the payout cascade for one activation event.
// The returned bool reports a replay: when any event already exists for the
// activation id the existing set is returned unchanged. A failed level does
// not roll back committed levels; exhausted retries surface as
// ErrSettlementFailed and the caller may retry the whole activation.
func (l *CommissionLedger) Settle(ctx context.Context, activationEventID string, refereeID primitive.ObjectID, activationAmount float64) ([]models.CommissionEvent, bool, error) {
	existing, err := l.store.EventsByActivation(ctx, activationEventID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, true, nil
	}

	edge, err := l.edges.ByReferee(ctx, refereeID)
	if err != nil {
		return nil, false, err
	}
	if edge == nil {
		// No referrer: nothing to cascade.
		return nil, false, nil
	}

	decision, err := l.gate.Evaluate(ctx, edge.ReferrerID, refereeID)
	if err != nil {
		return nil, false, err
	}
	if !decision.Allowed {
		// Fraud at level 1 poisons the whole chain for this event: no
		// ancestor walk, a single rejected record for the audit trail.
		reason := strings.Join(decision.Reasons, ",")
		if err := l.edges.MarkFraudSuspected(ctx, refereeID, reason); err != nil {
			log.Printf("ledger: failed to flag edge for referee %s: %v", refereeID.Hex(), err)
		}
		rejected, err := l.store.RecordRejection(ctx, models.CommissionEvent{
			ActivationEventID: activationEventID,
			RefereeID:         refereeID,
			Level:             1,
			RecipientID:       edge.ReferrerID,
			ActivationAmount:  activationAmount,
			Status:            models.CommissionRejectedFraud,
			Reason:            reason,
			CreatedAt:         time.Now(),
		})
		if err != nil && !errors.Is(err, ErrDuplicateActivation) {
			return nil, false, err
		}
		return []models.CommissionEvent{rejected}, false, nil
	}

	ancestors, err := l.graph.ResolveAncestors(ctx, refereeID, MaxCommissionLevels)
	if err != nil {
		return nil, false, err
	}
	if len(ancestors) == 0 {
		return nil, false, nil
	}

	// Levels touch disjoint accounts in the common case; credit them
	// concurrently. Each level is its own unit of work and fails
	// independently.
	events := make([]models.CommissionEvent, len(ancestors))
	levelErrs := make([]error, len(ancestors))
	var wg sync.WaitGroup
	for i, ancestor := range ancestors {
		wg.Add(1)
		go func(i int, ancestor models.Ancestor) {
			defer wg.Done()
			events[i], levelErrs[i] = l.settleLevel(ctx, activationEventID, refereeID, activationAmount, ancestor)
		}(i, ancestor)
	}
	wg.Wait()

	out := make([]models.CommissionEvent, 0, len(ancestors))
	var failed []string
	for i := range events {
		if levelErrs[i] != nil {
			failed = append(failed, fmt.Sprintf("level %d: %v", ancestors[i].Level, levelErrs[i]))
			continue
		}
		out = append(out, events[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })

	if len(failed) > 0 {
		return out, false, fmt.Errorf("%w: %s", ErrSettlementFailed, strings.Join(failed, "; "))
	}
	return out, false, nil
}

func (l *CommissionLedger) settleLevel(ctx context.Context, activationEventID string, refereeID primitive.ObjectID, activationAmount float64, ancestor models.Ancestor) (models.CommissionEvent, error) {
	event := models.CommissionEvent{
		ActivationEventID: activationEventID,
		RefereeID:         refereeID,
		Level:             ancestor.Level,
		RecipientID:       ancestor.AccountID,
		ActivationAmount:  activationAmount,
		CreatedAt:         time.Now(),
	}

	exists, err := l.accounts.Exists(ctx, ancestor.AccountID)
	if err != nil {
		return event, err
	}
	if !exists {
		event.Status = models.CommissionRejectedNoRecipient
		event.Reason = ErrAccountNotFound.Error()
		return l.store.RecordRejection(ctx, event)
	}

	event.Amount = CommissionAmounts[ancestor.Level-1]
	event.Status = models.CommissionPosted

	var lastErr error
	for attempt := 0; attempt < creditRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
		posted, err := l.store.PostCredit(ctx, event)
		if err == nil {
			return posted, nil
		}
		if errors.Is(err, ErrDuplicateActivation) {
			// A concurrent retry won the race for this level.
			return event, nil
		}
		if !errors.Is(err, ErrLedgerWriteConflict) {
			return event, err
		}
		lastErr = err
	}
	return event, lastErr
}

// PayWelcomeBonus credits the activating user's fixed one-time bonus,
// guarded by the activation event id so replays never double-pay.
func (l *CommissionLedger) PayWelcomeBonus(ctx context.Context, accountID primitive.ObjectID, activationEventID string) error {
	bonus := models.WelcomeBonus{
		ActivationEventID: activationEventID,
		AccountID:         accountID,
		Amount:            WelcomeBonusAmount,
		Reference:         "welcome_" + uuid.NewString(),
		CreatedAt:         time.Now(),
	}
	err := l.store.PayWelcomeBonus(ctx, bonus)
	if errors.Is(err, ErrDuplicateActivation) {
		return nil
	}
	return err
}

// Ledger returns the commission history for one account.
func (l *CommissionLedger) Ledger(ctx context.Context, accountID primitive.ObjectID) ([]models.CommissionEvent, error) {
	return l.store.EventsForRecipient(ctx, accountID)
}
