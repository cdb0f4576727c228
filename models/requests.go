// models/requests.go
package models

import "time"

// ActivationRequest is the payload posted by the payment collaborator after
// a successful capture.
type ActivationRequest struct {
	UserID            string  `json:"userId" validate:"required"`
	Amount            float64 `json:"amount" validate:"gte=0"`
	ActivationEventID string  `json:"activationEventId"`
}

// RegisterRequest creates an account and, when a referral code is supplied,
// the referral edge pointing at the code's owner.
type RegisterRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=8"`
	FullName          string `json:"fullName" validate:"required"`
	ReferralCode      string `json:"referralCode,omitempty"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TierStatusResponse is the reporting view of an agent's progression state.
type TierStatusResponse struct {
	AgentTier           string    `json:"agentTier"`
	TierDisplayName     string    `json:"tierDisplayName"`
	TierState           string    `json:"tierState"`
	CumulativeReferrals int       `json:"cumulativeReferrals"`
	ReferralRequirement int       `json:"referralRequirement"`
	AttemptNumber       int       `json:"attemptNumber"`
	MaxAttempts         int       `json:"maxAttempts"`
	WindowExpiresAt     time.Time `json:"windowExpiresAt,omitempty"`
	Deficit             int       `json:"deficit"`
}

// ReferralDataResponse is the reporting view of an account's referral reach.
type ReferralDataResponse struct {
	ReferralCode  string  `json:"referralCode"`
	ReferralCount int64   `json:"referralCount"`
	Balance       float64 `json:"balance"`
	TotalEarned   float64 `json:"totalEarned"`
	ReferralLink  string  `json:"referralLink"`
}
