// services/progression.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

// finalOpportunityMaxDeficitRatio is the cutoff above which an exhausted
// challenge demotes immediately instead of earning a final opportunity.
const finalOpportunityMaxDeficitRatio = 0.30

// DefaultCooldown is how long a demoted agent waits before a fresh attempt.
const DefaultCooldown = 7 * 24 * time.Hour

// casRetries bounds optimistic-concurrency retries on tier-state updates.
const casRetries = 3

// expirySweepBatch caps how many agents one sweep pass loads.
const expirySweepBatch = 100

// Tier transition kinds reported to callers and pushed to notifiers.
const (
	TransitionAdvanced         = "advanced"
	TransitionReset            = "reset"
	TransitionDemoted          = "demoted"
	TransitionFinalOpportunity = "final_opportunity"
	TransitionCooldownEnded    = "cooldown_ended"
)

// TierTransition describes one state-machine transition for an agent.
type TierTransition struct {
	AgentID         primitive.ObjectID `json:"agentId"`
	Kind            string             `json:"kind"`
	FromTier        string             `json:"fromTier"`
	ToTier          string             `json:"toTier"`
	WindowExpiresAt time.Time          `json:"windowExpiresAt,omitempty"`
}

// ProgressionStore persists agent tier state and the append-only challenge
// history. CompareAndSwapTierState matches on (id, version), bumps the
// version, and returns ErrTierTransitionConflict when the stored version
// moved. ClaimProgress inserts the (agent, activation) dedup marker and
// returns false when it already exists.
type ProgressionStore interface {
	Agent(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	ClaimProgress(ctx context.Context, agentID primitive.ObjectID, activationEventID string) (bool, error)
	ReleaseProgress(ctx context.Context, agentID primitive.ObjectID, activationEventID string) error
	CompareAndSwapTierState(ctx context.Context, agent *models.Account) error
	AppendAttempt(ctx context.Context, attempt models.ChallengeAttempt) error
	AttemptsForAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.ChallengeAttempt, error)
	ExpiredWindowAgents(ctx context.Context, now time.Time, limit int64) ([]models.Account, error)
}

// TierProgression is the per-agent challenge state machine. Cumulative
// progress carries across attempt resets within a tier and restarts at zero
// on every tier change, advancement and demotion alike.
type TierProgression struct {
	store    ProgressionStore
	cooldown time.Duration
	now      func() time.Time
}

func NewTierProgression(store ProgressionStore) *TierProgression {
	return &TierProgression{
		store:    store,
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
}

// InitAgent seeds a fresh account with its first challenge window.
func InitAgent(account *models.Account, now time.Time) {
	spec := models.Tiers[models.TierRookie]
	account.AgentTier = models.TierRookie
	account.TierState = models.TierStateActive
	account.CumulativeReferrals = 0
	account.AttemptNumber = 1
	account.AttemptReferrals = 0
	account.WindowStartedAt = now
	account.WindowExpiresAt = now.Add(time.Duration(spec.WindowDays) * 24 * time.Hour)
}

// FinalOpportunityWindow sizes the bonus window by remaining work instead of
// handing every deficit the same grace period.
func FinalOpportunityWindow(deficit int) time.Duration {
	switch {
	case deficit <= 10:
		return 3 * 24 * time.Hour
	case deficit <= 30:
		return 5 * 24 * time.Hour
	case deficit <= 50:
		return 7 * 24 * time.Hour
	default:
		return 10 * 24 * time.Hour
	}
}

// RecordQualifyingReferral credits one paid referral toward the agent's
// current challenge. The activation event id dedups replays; a referral that
// lands while no window is open earns commission but no challenge credit.
func (p *TierProgression) RecordQualifyingReferral(ctx context.Context, agentID primitive.ObjectID, activationEventID string) (*TierTransition, error) {
	claimed, err := p.store.ClaimProgress(ctx, agentID, activationEventID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}

	transition, err := p.applyReferral(ctx, agentID)
	if err != nil {
		// Give the claim back so a retried activation can count again.
		if rerr := p.store.ReleaseProgress(ctx, agentID, activationEventID); rerr != nil {
			log.Printf("progression: failed to release claim for agent %s event %s: %v", agentID.Hex(), activationEventID, rerr)
		}
		return nil, err
	}
	return transition, nil
}

func (p *TierProgression) applyReferral(ctx context.Context, agentID primitive.ObjectID) (*TierTransition, error) {
	for i := 0; i < casRetries; i++ {
		agent, err := p.store.Agent(ctx, agentID)
		if err != nil {
			return nil, err
		}
		if agent.TierState != models.TierStateActive && agent.TierState != models.TierStateFinalOpportunity {
			return nil, nil
		}

		agent.AttemptReferrals++
		agent.CumulativeReferrals++

		spec := models.Tiers[agent.AgentTier]
		var closed *models.ChallengeAttempt
		var transition *TierTransition
		if agent.CumulativeReferrals >= spec.ReferralRequirement {
			now := p.now()
			row := p.closeAttempt(agent, now, models.AttemptSuccess)
			from := agent.AgentTier
			p.enterNextTier(agent, now)
			closed = &row
			transition = &TierTransition{
				AgentID:         agent.ID,
				Kind:            TransitionAdvanced,
				FromTier:        from,
				ToTier:          agent.AgentTier,
				WindowExpiresAt: agent.WindowExpiresAt,
			}
		}

		if err := p.store.CompareAndSwapTierState(ctx, agent); err != nil {
			if errors.Is(err, ErrTierTransitionConflict) {
				continue
			}
			return nil, err
		}
		if closed != nil {
			// The counter update is already durable; failing here would
			// release the claim and let a retry count the event twice.
			if err := p.store.AppendAttempt(ctx, *closed); err != nil {
				log.Printf("progression: failed to append attempt for agent %s: %v", agent.ID.Hex(), err)
			}
		}
		return transition, nil
	}
	return nil, ErrTierTransitionConflict
}

// ExpireWindows is the background, time-driven half of the state machine.
// It is idempotent: an agent transitioned by a concurrent sweep simply loses
// the version race and is skipped.
func (p *TierProgression) ExpireWindows(ctx context.Context) ([]TierTransition, error) {
	now := p.now()
	agents, err := p.store.ExpiredWindowAgents(ctx, now, expirySweepBatch)
	if err != nil {
		return nil, err
	}

	var transitions []TierTransition
	for i := range agents {
		transition, err := p.expireOne(ctx, &agents[i], now)
		if err != nil {
			if errors.Is(err, ErrTierTransitionConflict) {
				continue
			}
			return transitions, err
		}
		if transition != nil {
			transitions = append(transitions, *transition)
		}
	}
	return transitions, nil
}

func (p *TierProgression) expireOne(ctx context.Context, agent *models.Account, now time.Time) (*TierTransition, error) {
	if agent.WindowExpiresAt.IsZero() || now.Before(agent.WindowExpiresAt) {
		return nil, nil
	}

	spec := models.Tiers[agent.AgentTier]
	from := agent.AgentTier
	var closed *models.ChallengeAttempt
	var kind string

	switch agent.TierState {
	case models.TierStateActive:
		switch {
		case agent.CumulativeReferrals >= spec.ReferralRequirement:
			row := p.closeAttempt(agent, now, models.AttemptSuccess)
			p.enterNextTier(agent, now)
			closed = &row
			kind = TransitionAdvanced

		case agent.AttemptNumber < spec.MaxAttempts:
			// Attempts remain: the window resets, the cumulative total
			// does not.
			row := p.closeAttempt(agent, now, models.AttemptReset)
			agent.AttemptNumber++
			agent.AttemptReferrals = 0
			agent.WindowStartedAt = now
			agent.WindowExpiresAt = now.Add(time.Duration(spec.WindowDays) * 24 * time.Hour)
			closed = &row
			kind = TransitionReset

		default:
			deficit := spec.ReferralRequirement - agent.CumulativeReferrals
			ratio := float64(deficit) / float64(spec.ReferralRequirement)
			if ratio > finalOpportunityMaxDeficitRatio {
				row := p.closeAttempt(agent, now, models.AttemptDemoted)
				p.demote(agent, now)
				closed = &row
				kind = TransitionDemoted
			} else {
				row := p.closeAttempt(agent, now, models.AttemptFinalOpportunityGranted)
				agent.TierState = models.TierStateFinalOpportunity
				agent.AttemptReferrals = 0
				agent.WindowStartedAt = now
				agent.WindowExpiresAt = now.Add(FinalOpportunityWindow(deficit))
				closed = &row
				kind = TransitionFinalOpportunity
			}
		}

	case models.TierStateFinalOpportunity:
		row := p.closeAttempt(agent, now, models.AttemptFinalOpportunityFailed)
		p.demote(agent, now)
		closed = &row
		kind = TransitionDemoted

	case models.TierStateCooldown:
		agent.TierState = models.TierStateActive
		agent.CumulativeReferrals = 0
		agent.AttemptNumber = 1
		agent.AttemptReferrals = 0
		agent.WindowStartedAt = now
		agent.WindowExpiresAt = now.Add(time.Duration(spec.WindowDays) * 24 * time.Hour)
		kind = TransitionCooldownEnded

	default:
		return nil, nil
	}

	if err := p.store.CompareAndSwapTierState(ctx, agent); err != nil {
		return nil, err
	}
	if closed != nil {
		if err := p.store.AppendAttempt(ctx, *closed); err != nil {
			log.Printf("progression: failed to append attempt for agent %s: %v", agent.ID.Hex(), err)
		}
	}
	return &TierTransition{
		AgentID:         agent.ID,
		Kind:            kind,
		FromTier:        from,
		ToTier:          agent.AgentTier,
		WindowExpiresAt: agent.WindowExpiresAt,
	}, nil
}

func (p *TierProgression) closeAttempt(agent *models.Account, now time.Time, outcome string) models.ChallengeAttempt {
	return models.ChallengeAttempt{
		AgentID:                    agent.ID,
		Tier:                       agent.AgentTier,
		AttemptNumber:              agent.AttemptNumber,
		StartedAt:                  agent.WindowStartedAt,
		EndedAt:                    now,
		ReferralsEarnedThisAttempt: agent.AttemptReferrals,
		CumulativeReferralsAtEnd:   agent.CumulativeReferrals,
		Outcome:                    outcome,
	}
}

func (p *TierProgression) enterNextTier(agent *models.Account, now time.Time) {
	next := models.NextTier(agent.AgentTier)
	agent.CumulativeReferrals = 0
	agent.AttemptReferrals = 0
	if next == "" {
		agent.TierState = models.TierStateAdvanced
		agent.AttemptNumber = 0
		agent.WindowStartedAt = time.Time{}
		agent.WindowExpiresAt = time.Time{}
		return
	}
	spec := models.Tiers[next]
	agent.AgentTier = next
	agent.TierState = models.TierStateActive
	agent.AttemptNumber = 1
	agent.WindowStartedAt = now
	agent.WindowExpiresAt = now.Add(time.Duration(spec.WindowDays) * 24 * time.Hour)
}

func (p *TierProgression) demote(agent *models.Account, now time.Time) {
	agent.AgentTier = models.PreviousTier(agent.AgentTier)
	agent.TierState = models.TierStateCooldown
	agent.CumulativeReferrals = 0
	agent.AttemptNumber = 0
	agent.AttemptReferrals = 0
	agent.WindowStartedAt = now
	agent.WindowExpiresAt = now.Add(p.cooldown)
}

// TierStatus builds the reporting view of an agent's progression state.
func (p *TierProgression) TierStatus(ctx context.Context, agentID primitive.ObjectID) (*models.TierStatusResponse, error) {
	agent, err := p.store.Agent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	spec := models.Tiers[agent.AgentTier]
	deficit := spec.ReferralRequirement - agent.CumulativeReferrals
	if deficit < 0 {
		deficit = 0
	}
	return &models.TierStatusResponse{
		AgentTier:           agent.AgentTier,
		TierDisplayName:     spec.DisplayName,
		TierState:           agent.TierState,
		CumulativeReferrals: agent.CumulativeReferrals,
		ReferralRequirement: spec.ReferralRequirement,
		AttemptNumber:       agent.AttemptNumber,
		MaxAttempts:         spec.MaxAttempts,
		WindowExpiresAt:     agent.WindowExpiresAt,
		Deficit:             deficit,
	}, nil
}

// ChallengeHistory returns the append-only attempt history for an agent.
func (p *TierProgression) ChallengeHistory(ctx context.Context, agentID primitive.ObjectID) ([]models.ChallengeAttempt, error) {
	return p.store.AttemptsForAgent(ctx, agentID)
}
