// models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tier state values for an agent's challenge window.
const (
	TierStateActive           = "active"
	TierStateFinalOpportunity = "final_opportunity"
	TierStateCooldown         = "cooldown"
	TierStateAdvanced         = "advanced"
)

// Account model. Balance and TotalEarned are mutated only by the commission
// ledger; the tier fields only by the tier progression state machine.
type Account struct {
	ID                primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	Email             string              `json:"email" bson:"email"`
	Password          string              `json:"password,omitempty" bson:"password"`
	FullName          string              `json:"fullName" bson:"fullName"`
	ReferralCode      string              `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	ReferrerID        *primitive.ObjectID `json:"referrerId,omitempty" bson:"referrerId,omitempty"`
	Balance           float64             `json:"balance" bson:"balance"`
	TotalEarned       float64             `json:"totalEarned" bson:"totalEarned"`
	RegistrationIP    string              `json:"-" bson:"registrationIp,omitempty"`
	DeviceFingerprint string              `json:"-" bson:"deviceFingerprint,omitempty"`
	IsActive          bool                `json:"isActive" bson:"isActive"`

	// Tier progression fields.
	AgentTier           string    `json:"agentTier" bson:"agentTier"`
	TierState           string    `json:"tierState" bson:"tierState"`
	CumulativeReferrals int       `json:"cumulativeReferrals" bson:"cumulativeReferrals"`
	AttemptNumber       int       `json:"attemptNumber" bson:"attemptNumber"`
	AttemptReferrals    int       `json:"attemptReferrals" bson:"attemptReferrals"`
	WindowStartedAt     time.Time `json:"windowStartedAt,omitempty" bson:"windowStartedAt,omitempty"`
	WindowExpiresAt     time.Time `json:"windowExpiresAt,omitempty" bson:"windowExpiresAt,omitempty"`

	// Version guards concurrent tier-field updates (compare-and-swap).
	Version int64 `json:"-" bson:"version"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Response is the shared JSON envelope returned by every handler.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
