// repositories/account_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refearnapp/refearn_backend/config"
	"github.com/refearnapp/refearn_backend/models"
	"github.com/refearnapp/refearn_backend/services"
)

const queryTimeout = 10 * time.Second

// AccountRepository wraps the accounts collection.
type AccountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *mongo.Client) *AccountRepository {
	return &AccountRepository{
		collection: config.GetCollection(db, "accounts"),
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.InsertOne(ctx, account)
	if err != nil {
		return err
	}
	account.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *AccountRepository) Account(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AccountRepository) ByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"referralCode": code}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CompareAndSwapTierState writes the agent's tier fields guarded by the
// version counter. A lost race surfaces as ErrTierTransitionConflict so the
// caller can reload and retry.
func (r *AccountRepository) CompareAndSwapTierState(ctx context.Context, agent *models.Account) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"_id": agent.ID, "version": agent.Version}
	update := bson.M{
		"$set": bson.M{
			"agentTier":           agent.AgentTier,
			"tierState":           agent.TierState,
			"cumulativeReferrals": agent.CumulativeReferrals,
			"attemptNumber":       agent.AttemptNumber,
			"attemptReferrals":    agent.AttemptReferrals,
			"windowStartedAt":     agent.WindowStartedAt,
			"windowExpiresAt":     agent.WindowExpiresAt,
			"updatedAt":           time.Now(),
		},
		"$inc": bson.M{"version": 1},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: agent %s version %d", services.ErrTierTransitionConflict, agent.ID.Hex(), agent.Version)
	}
	agent.Version++
	return nil
}

// ExpiredWindowAgents returns agents whose challenge or cooldown deadline
// has passed, oldest deadlines first.
func (r *AccountRepository) ExpiredWindowAgents(ctx context.Context, now time.Time, limit int64) ([]models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"tierState": bson.M{"$in": []string{
			models.TierStateActive,
			models.TierStateFinalOpportunity,
			models.TierStateCooldown,
		}},
		"windowExpiresAt": bson.M{"$gt": time.Time{}, "$lte": now},
	}

	opts := optionsFindSorted("windowExpiresAt", limit)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var agents []models.Account
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}
