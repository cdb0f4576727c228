// repositories/progression_repository.go
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refearnapp/refearn_backend/config"
	"github.com/refearnapp/refearn_backend/models"
)

// ProgressionRepository is the tier state machine's storage. Account reads
// and the guarded tier-state write delegate to the account repository; this
// type adds the attempt history and the per-activation dedup markers.
type ProgressionRepository struct {
	accounts *AccountRepository
	attempts *mongo.Collection
	progress *mongo.Collection
}

func NewProgressionRepository(db *mongo.Client, accounts *AccountRepository) *ProgressionRepository {
	return &ProgressionRepository{
		accounts: accounts,
		attempts: config.GetCollection(db, "challengeAttempts"),
		progress: config.GetCollection(db, "tierProgressEvents"),
	}
}

func (r *ProgressionRepository) Agent(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.accounts.Account(ctx, id)
}

func (r *ProgressionRepository) CompareAndSwapTierState(ctx context.Context, agent *models.Account) error {
	return r.accounts.CompareAndSwapTierState(ctx, agent)
}

func (r *ProgressionRepository) ExpiredWindowAgents(ctx context.Context, now time.Time, limit int64) ([]models.Account, error) {
	return r.accounts.ExpiredWindowAgents(ctx, now, limit)
}

// ClaimProgress inserts the (agent, activation) marker. The unique index
// turns a replay into a duplicate-key error, reported as claimed=false.
func (r *ProgressionRepository) ClaimProgress(ctx context.Context, agentID primitive.ObjectID, activationEventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.progress.InsertOne(ctx, models.TierProgressEvent{
		AgentID:           agentID,
		ActivationEventID: activationEventID,
		CreatedAt:         time.Now(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ProgressionRepository) ReleaseProgress(ctx context.Context, agentID primitive.ObjectID, activationEventID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.progress.DeleteOne(ctx, bson.M{
		"agentId":           agentID,
		"activationEventId": activationEventID,
	})
	return err
}

func (r *ProgressionRepository) AppendAttempt(ctx context.Context, attempt models.ChallengeAttempt) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.attempts.InsertOne(ctx, attempt)
	return err
}

func (r *ProgressionRepository) AttemptsForAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.ChallengeAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.attempts.Find(ctx, bson.M{"agentId": agentID}, optionsFindSorted("startedAt", 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attempts []models.ChallengeAttempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}
