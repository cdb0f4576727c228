package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

// memStore is an in-memory implementation of every storage contract the
// engine depends on. It mimics the real store's semantics: unique-key
// collisions surface as ErrDuplicateActivation, guarded tier writes compare
// versions, and reads hand out copies.
type memStore struct {
	mu sync.Mutex

	accounts map[primitive.ObjectID]*models.Account
	edges    map[primitive.ObjectID]*models.ReferralEdge
	events   []models.CommissionEvent
	bonuses  map[string]models.WelcomeBonus
	audits   []models.FraudAudit
	attempts []models.ChallengeAttempt
	claims   map[string]bool
	recent   map[primitive.ObjectID]int64

	// creditFailures makes the next N PostCredit calls fail transiently;
	// appendFailures does the same for AppendAttempt.
	creditFailures int
	appendFailures int
	counterErr     error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[primitive.ObjectID]*models.Account),
		edges:    make(map[primitive.ObjectID]*models.ReferralEdge),
		bonuses:  make(map[string]models.WelcomeBonus),
		claims:   make(map[string]bool),
		recent:   make(map[primitive.ObjectID]int64),
	}
}

func (s *memStore) addAccount(account models.Account) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	s.accounts[account.ID] = &account
	return account.ID
}

func (s *memStore) link(referrerID, refereeID primitive.ObjectID, edge models.ReferralEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge.ID = primitive.NewObjectID()
	edge.ReferrerID = referrerID
	edge.RefereeID = refereeID
	s.edges[refereeID] = &edge
}

func (s *memStore) balance(id primitive.ObjectID) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.accounts[id]; ok {
		return account.Balance
	}
	return 0
}

func (s *memStore) Account(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// Agent is the progression store's name for the same account read.
func (s *memStore) Agent(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return s.Account(ctx, id)
}

func (s *memStore) Exists(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[id]
	return ok, nil
}

func (s *memStore) ByReferee(_ context.Context, refereeID primitive.ObjectID) (*models.ReferralEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge, ok := s.edges[refereeID]
	if !ok {
		return nil, nil
	}
	copied := *edge
	return &copied, nil
}

func (s *memStore) MarkFraudSuspected(_ context.Context, refereeID primitive.ObjectID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if edge, ok := s.edges[refereeID]; ok {
		edge.FraudSuspected = true
		edge.FraudReason = reason
	}
	return nil
}

func (s *memStore) RecentReferrals(_ context.Context, referrerID primitive.ObjectID, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counterErr != nil {
		return 0, s.counterErr
	}
	return s.recent[referrerID], nil
}

func (s *memStore) Record(_ context.Context, audit models.FraudAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, audit)
	return nil
}

func (s *memStore) EventsByActivation(_ context.Context, activationEventID string) ([]models.CommissionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CommissionEvent
	for _, event := range s.events {
		if event.ActivationEventID == activationEventID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *memStore) EventsForRecipient(_ context.Context, accountID primitive.ObjectID) ([]models.CommissionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CommissionEvent
	for _, event := range s.events {
		if event.RecipientID == accountID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *memStore) PostCredit(_ context.Context, event models.CommissionEvent) (models.CommissionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creditFailures > 0 {
		s.creditFailures--
		return event, ErrLedgerWriteConflict
	}
	for _, existing := range s.events {
		if existing.ActivationEventID == event.ActivationEventID && existing.Level == event.Level {
			return event, ErrDuplicateActivation
		}
	}
	event.ID = primitive.NewObjectID()
	s.events = append(s.events, event)
	if account, ok := s.accounts[event.RecipientID]; ok {
		account.Balance += event.Amount
		account.TotalEarned += event.Amount
	}
	return event, nil
}

func (s *memStore) RecordRejection(_ context.Context, event models.CommissionEvent) (models.CommissionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.ActivationEventID == event.ActivationEventID && existing.Level == event.Level {
			return event, ErrDuplicateActivation
		}
	}
	event.ID = primitive.NewObjectID()
	s.events = append(s.events, event)
	return event, nil
}

func (s *memStore) PayWelcomeBonus(_ context.Context, bonus models.WelcomeBonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bonuses[bonus.ActivationEventID]; ok {
		return ErrDuplicateActivation
	}
	for _, existing := range s.bonuses {
		if existing.AccountID == bonus.AccountID {
			return ErrDuplicateActivation
		}
	}
	s.bonuses[bonus.ActivationEventID] = bonus
	if account, ok := s.accounts[bonus.AccountID]; ok {
		account.Balance += bonus.Amount
		account.TotalEarned += bonus.Amount
	}
	return nil
}

func (s *memStore) ClaimProgress(_ context.Context, agentID primitive.ObjectID, activationEventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := agentID.Hex() + "/" + activationEventID
	if s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

func (s *memStore) ReleaseProgress(_ context.Context, agentID primitive.ObjectID, activationEventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, agentID.Hex()+"/"+activationEventID)
	return nil
}

func (s *memStore) CompareAndSwapTierState(_ context.Context, agent *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[agent.ID]
	if !ok {
		return ErrAccountNotFound
	}
	if stored.Version != agent.Version {
		return ErrTierTransitionConflict
	}
	stored.AgentTier = agent.AgentTier
	stored.TierState = agent.TierState
	stored.CumulativeReferrals = agent.CumulativeReferrals
	stored.AttemptNumber = agent.AttemptNumber
	stored.AttemptReferrals = agent.AttemptReferrals
	stored.WindowStartedAt = agent.WindowStartedAt
	stored.WindowExpiresAt = agent.WindowExpiresAt
	stored.Version++
	agent.Version++
	return nil
}

func (s *memStore) AppendAttempt(_ context.Context, attempt models.ChallengeAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendFailures > 0 {
		s.appendFailures--
		return errHistoryDown
	}
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *memStore) AttemptsForAgent(_ context.Context, agentID primitive.ObjectID) ([]models.ChallengeAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChallengeAttempt
	for _, attempt := range s.attempts {
		if attempt.AgentID == agentID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (s *memStore) ExpiredWindowAgents(_ context.Context, now time.Time, limit int64) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, account := range s.accounts {
		switch account.TierState {
		case models.TierStateActive, models.TierStateFinalOpportunity, models.TierStateCooldown:
		default:
			continue
		}
		if account.WindowExpiresAt.IsZero() || account.WindowExpiresAt.After(now) {
			continue
		}
		out = append(out, *account)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// allowAllGate approves every edge; used where fraud is not under test.
type allowAllGate struct{}

func (allowAllGate) Evaluate(context.Context, primitive.ObjectID, primitive.ObjectID) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// denyAllGate rejects every edge with a fixed reason.
type denyAllGate struct{}

func (denyAllGate) Evaluate(context.Context, primitive.ObjectID, primitive.ObjectID) (Decision, error) {
	return Decision{Allowed: false, Reasons: []string{models.FraudReasonSharedDevice}}, nil
}

var (
	errCounterDown = errors.New("counter unavailable")
	errHistoryDown = errors.New("attempt history unavailable")
)
