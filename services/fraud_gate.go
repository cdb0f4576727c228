// services/fraud_gate.go
package services

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

// FraudAccountReader loads accounts for fraud scoring.
type FraudAccountReader interface {
	Account(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
}

// FraudEdgeReader loads the referral edge under evaluation. ByReferee
// returns (nil, nil) when the referee has no edge.
type FraudEdgeReader interface {
	ByReferee(ctx context.Context, refereeID primitive.ObjectID) (*models.ReferralEdge, error)
}

// BurstCounter reports how many referral edges a referrer produced inside
// the sliding window ending now.
type BurstCounter interface {
	RecentReferrals(ctx context.Context, referrerID primitive.ObjectID, window time.Duration) (int64, error)
}

// FraudAuditWriter records rejections for manual review.
type FraudAuditWriter interface {
	Record(ctx context.Context, audit models.FraudAudit) error
}

// IdentityResolver answers whether two accounts resolve to the same
// underlying person. Identity verification lives upstream; the default
// resolver only compares ids.
type IdentityResolver interface {
	SamePerson(ctx context.Context, a, b primitive.ObjectID) (bool, error)
}

type idEqualityResolver struct{}

func (idEqualityResolver) SamePerson(_ context.Context, a, b primitive.ObjectID) (bool, error) {
	return a == b, nil
}

// FraudConfig tunes the gate's heuristics.
type FraudConfig struct {
	// MaxReferralsPerWindow bounds referrer fan-out bursts: more than this
	// many new referrals inside BurstWindow rejects the edge.
	MaxReferralsPerWindow int64
	BurstWindow           time.Duration

	// IPRecencyWindow limits how far apart two registrations from the same
	// subnet may be and still count as suspicious.
	IPRecencyWindow time.Duration

	// SubnetBits is the prefix length used for the IP similarity check.
	SubnetBits int
}

// DefaultFraudConfig returns the standard gate tuning.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		MaxReferralsPerWindow: 10,
		BurstWindow:           60 * time.Minute,
		IPRecencyWindow:       72 * time.Hour,
		SubnetBits:            24,
	}
}

// Decision is the gate's verdict for one referral edge.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}

// FraudGate screens a referral edge before it may earn commission. All four
// checks run concurrently and are awaited jointly; any failing check rejects
// the edge. The gate fails closed: a check that errors counts as a rejection.
type FraudGate struct {
	accounts FraudAccountReader
	edges    FraudEdgeReader
	counter  BurstCounter
	audits   FraudAuditWriter
	identity IdentityResolver
	cfg      FraudConfig
}

// NewFraudGate wires a gate. A nil identity resolver falls back to plain id
// equality.
func NewFraudGate(accounts FraudAccountReader, edges FraudEdgeReader, counter BurstCounter, audits FraudAuditWriter, identity IdentityResolver, cfg FraudConfig) *FraudGate {
	if identity == nil {
		identity = idEqualityResolver{}
	}
	return &FraudGate{
		accounts: accounts,
		edges:    edges,
		counter:  counter,
		audits:   audits,
		identity: identity,
		cfg:      cfg,
	}
}

// Evaluate screens the (referrer, referee) edge. A rejection is terminal for
// the edge; its only side effect besides the verdict is the audit record.
func (g *FraudGate) Evaluate(ctx context.Context, referrerID, refereeID primitive.ObjectID) (Decision, error) {
	referrer, err := g.accounts.Account(ctx, referrerID)
	if err != nil {
		return g.reject(ctx, referrerID, refereeID, []string{models.FraudReasonCheckError})
	}

	edge, err := g.edges.ByReferee(ctx, refereeID)
	if err != nil || edge == nil {
		return g.reject(ctx, referrerID, refereeID, []string{models.FraudReasonCheckError})
	}

	checks := []func(context.Context) string{
		func(ctx context.Context) string { return g.checkSelfReferral(ctx, referrerID, refereeID) },
		func(ctx context.Context) string { return g.checkIPSimilarity(referrer, edge) },
		func(ctx context.Context) string { return g.checkSharedDevice(referrer, edge) },
		func(ctx context.Context) string { return g.checkRapidSignup(ctx, referrerID) },
	}

	// Fan out the independent checks and join before deciding.
	results := make([]string, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check func(context.Context) string) {
			defer wg.Done()
			results[i] = check(ctx)
		}(i, check)
	}
	wg.Wait()

	var reasons []string
	for _, r := range results {
		if r != "" {
			reasons = append(reasons, r)
		}
	}
	if len(reasons) > 0 {
		return g.reject(ctx, referrerID, refereeID, reasons)
	}
	return Decision{Allowed: true}, nil
}

func (g *FraudGate) reject(ctx context.Context, referrerID, refereeID primitive.ObjectID, reasons []string) (Decision, error) {
	audit := models.FraudAudit{
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		Reasons:    reasons,
		DetectedAt: time.Now(),
	}
	if err := g.audits.Record(ctx, audit); err != nil {
		log.Printf("fraud gate: failed to record audit for referee %s: %v", refereeID.Hex(), err)
	}
	return Decision{Allowed: false, Reasons: reasons}, nil
}

func (g *FraudGate) checkSelfReferral(ctx context.Context, referrerID, refereeID primitive.ObjectID) string {
	if referrerID == refereeID {
		return models.FraudReasonSelfReferral
	}
	same, err := g.identity.SamePerson(ctx, referrerID, refereeID)
	if err != nil {
		return models.FraudReasonCheckError
	}
	if same {
		return models.FraudReasonSelfReferral
	}
	return ""
}

func (g *FraudGate) checkIPSimilarity(referrer *models.Account, edge *models.ReferralEdge) string {
	if referrer.RegistrationIP == "" || edge.OriginIP == "" {
		return ""
	}
	if !sameSubnet(referrer.RegistrationIP, edge.OriginIP, g.cfg.SubnetBits) {
		return ""
	}
	if edge.CreatedAt.Sub(referrer.CreatedAt) <= g.cfg.IPRecencyWindow {
		return models.FraudReasonIPSimilarity
	}
	return ""
}

func (g *FraudGate) checkSharedDevice(referrer *models.Account, edge *models.ReferralEdge) string {
	if referrer.DeviceFingerprint == "" || edge.OriginDeviceFingerprint == "" {
		return ""
	}
	if referrer.DeviceFingerprint == edge.OriginDeviceFingerprint {
		return models.FraudReasonSharedDevice
	}
	return ""
}

func (g *FraudGate) checkRapidSignup(ctx context.Context, referrerID primitive.ObjectID) string {
	count, err := g.counter.RecentReferrals(ctx, referrerID, g.cfg.BurstWindow)
	if err != nil {
		return models.FraudReasonCheckError
	}
	if count > g.cfg.MaxReferralsPerWindow {
		return models.FraudReasonRapidSignup
	}
	return ""
}

// sameSubnet reports whether both IPs fall in the same prefix. Unparseable
// addresses compare by string equality only.
func sameSubnet(a, b string, bits int) bool {
	ipA := net.ParseIP(a)
	ipB := net.ParseIP(b)
	if ipA == nil || ipB == nil {
		return a == b
	}
	if v4A, v4B := ipA.To4(), ipB.To4(); v4A != nil && v4B != nil {
		mask := net.CIDRMask(bits, 32)
		return v4A.Mask(mask).Equal(v4B.Mask(mask))
	}
	mask := net.CIDRMask(bits*2, 128)
	return ipA.Mask(mask).Equal(ipB.Mask(mask))
}
