// models/referral_edge.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralEdge records who referred whom. Each referee has exactly one edge;
// a referrer may fan out to many. Immutable after creation except for the
// fraud flag, which is set at most once when the fraud gate rejects the edge.
type ReferralEdge struct {
	ID                      primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ReferrerID              primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	RefereeID               primitive.ObjectID `json:"refereeId" bson:"refereeId"`
	OriginIP                string             `json:"-" bson:"originIp,omitempty"`
	OriginDeviceFingerprint string             `json:"-" bson:"originDeviceFingerprint,omitempty"`
	FraudSuspected          bool               `json:"fraudSuspected" bson:"fraudSuspected"`
	FraudReason             string             `json:"fraudReason,omitempty" bson:"fraudReason,omitempty"`
	CreatedAt               time.Time          `json:"createdAt" bson:"createdAt"`
}

// Ancestor is one resolved entry of a referral chain walk.
// Level 1 is the direct referrer.
type Ancestor struct {
	Level     int                `json:"level"`
	AccountID primitive.ObjectID `json:"accountId"`
}
