// services/orchestrator.go
package services

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

// Settler is the commission ledger contract the orchestrator drives.
type Settler interface {
	Settle(ctx context.Context, activationEventID string, refereeID primitive.ObjectID, activationAmount float64) ([]models.CommissionEvent, bool, error)
	PayWelcomeBonus(ctx context.Context, accountID primitive.ObjectID, activationEventID string) error
}

// ProgressRecorder feeds qualifying referrals into an agent's tier machine.
type ProgressRecorder interface {
	RecordQualifyingReferral(ctx context.Context, agentID primitive.ObjectID, activationEventID string) (*TierTransition, error)
}

// Notifier pushes engine outcomes to connected clients. Implementations must
// not block; a nil notifier disables pushes.
type Notifier interface {
	CommissionPosted(recipientID primitive.ObjectID, event models.CommissionEvent)
	TierChanged(agentID primitive.ObjectID, transition TierTransition)
}

// Orchestrator is the entry point the payment collaborator invokes on
// successful activation. It is a pure coordinator: settlement, welcome
// bonus, then one tier-progress credit per paid ancestor.
type Orchestrator struct {
	ledger      Settler
	progression ProgressRecorder
	notifier    Notifier
}

func NewOrchestrator(ledger Settler, progression ProgressRecorder, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		ledger:      ledger,
		progression: progression,
		notifier:    notifier,
	}
}

// ActivateUser settles one paid activation. Safe to call more than once with
// the same activation event id: the ledger replays its existing event set,
// the welcome bonus is keyed by the id, and tier progress is deduped per
// (ancestor, id). A settlement failure is surfaced so the caller may retry
// the whole activation.
func (o *Orchestrator) ActivateUser(ctx context.Context, userID primitive.ObjectID, activationAmount float64, activationEventID string) error {
	events, replayed, err := o.ledger.Settle(ctx, activationEventID, userID, activationAmount)
	if err != nil {
		return err
	}

	if err := o.ledger.PayWelcomeBonus(ctx, userID, activationEventID); err != nil {
		return err
	}

	for _, event := range events {
		if event.Status != models.CommissionPosted {
			continue
		}
		transition, err := o.progression.RecordQualifyingReferral(ctx, event.RecipientID, activationEventID)
		if err != nil {
			return err
		}
		if o.notifier != nil && !replayed {
			o.notifier.CommissionPosted(event.RecipientID, event)
		}
		if transition != nil {
			log.Printf("orchestrator: agent %s %s %s -> %s", transition.AgentID.Hex(), transition.Kind, transition.FromTier, transition.ToTier)
			if o.notifier != nil {
				o.notifier.TierChanged(transition.AgentID, *transition)
			}
		}
	}
	return nil
}
