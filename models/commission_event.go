// models/commission_event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Commission event statuses. Events are append-only; a rejected level is
// recorded with its reason instead of being dropped.
const (
	CommissionPosted              = "posted"
	CommissionRejectedFraud       = "rejected-fraud"
	CommissionRejectedNoRecipient = "rejected-no-recipient"
)

// CommissionEvent is one row of the audit ledger. At most one event exists
// per (activationEventId, level) pair; the unique index on that pair makes
// settlement replays no-ops.
type CommissionEvent struct {
	ID                primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ActivationEventID string             `json:"activationEventId" bson:"activationEventId"`
	RefereeID         primitive.ObjectID `json:"refereeId" bson:"refereeId"`
	Level             int                `json:"level" bson:"level"`
	RecipientID       primitive.ObjectID `json:"recipientId,omitempty" bson:"recipientId,omitempty"`
	Amount            float64            `json:"amount" bson:"amount"`
	ActivationAmount  float64            `json:"activationAmount" bson:"activationAmount"`
	Status            string             `json:"status" bson:"status"`
	Reason            string             `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
}

// WelcomeBonus is the one-time activation credit paid to the activating user.
// Unique indexes on activationEventId and accountId make sure neither a
// replayed activation nor a second activation pays it twice.
type WelcomeBonus struct {
	ID                primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ActivationEventID string             `json:"activationEventId" bson:"activationEventId"`
	AccountID         primitive.ObjectID `json:"accountId" bson:"accountId"`
	Amount            float64            `json:"amount" bson:"amount"`
	Reference         string             `json:"reference" bson:"reference"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
}
