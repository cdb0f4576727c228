// models/challenge_attempt.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Challenge attempt outcomes.
const (
	AttemptSuccess                 = "success"
	AttemptReset                   = "reset"
	AttemptFinalOpportunityGranted = "final-opportunity-granted"
	AttemptFinalOpportunityFailed  = "final-opportunity-failed"
	AttemptDemoted                 = "demoted"
)

// ChallengeAttempt is one closed challenge window, kept append-only for
// audit and dispute resolution. CumulativeReferralsAtEnd is the running
// total across resets within the same tier; it only restarts after a tier
// transition.
type ChallengeAttempt struct {
	ID                         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgentID                    primitive.ObjectID `json:"agentId" bson:"agentId"`
	Tier                       string             `json:"tier" bson:"tier"`
	AttemptNumber              int                `json:"attemptNumber" bson:"attemptNumber"`
	StartedAt                  time.Time          `json:"startedAt" bson:"startedAt"`
	EndedAt                    time.Time          `json:"endedAt" bson:"endedAt"`
	ReferralsEarnedThisAttempt int                `json:"referralsEarnedThisAttempt" bson:"referralsEarnedThisAttempt"`
	CumulativeReferralsAtEnd   int                `json:"cumulativeReferralsAtEnd" bson:"cumulativeReferralsAtEnd"`
	Outcome                    string             `json:"outcome" bson:"outcome"`
}

// TierProgressEvent dedups qualifying-referral credit per activation so a
// replayed activation never double-counts toward tier progress. Unique index
// on (agentId, activationEventId).
type TierProgressEvent struct {
	ID                primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgentID           primitive.ObjectID `json:"agentId" bson:"agentId"`
	ActivationEventID string             `json:"activationEventId" bson:"activationEventId"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
}
