// models/fraud.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fraud rejection reasons recorded for manual review.
const (
	FraudReasonSelfReferral = "self_referral"
	FraudReasonIPSimilarity = "ip_similarity"
	FraudReasonSharedDevice = "shared_device"
	FraudReasonRapidSignup  = "rapid_signup"
	FraudReasonCheckError   = "check_error"
)

// FraudAudit is the manual-review record written whenever the fraud gate
// rejects a referral edge.
type FraudAudit struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ReferrerID primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	RefereeID  primitive.ObjectID `json:"refereeId" bson:"refereeId"`
	Reasons    []string           `json:"reasons" bson:"reasons"`
	DetectedAt time.Time          `json:"detectedAt" bson:"detectedAt"`
}
