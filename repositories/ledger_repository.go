// repositories/ledger_repository.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refearnapp/refearn_backend/config"
	"github.com/refearnapp/refearn_backend/models"
	"github.com/refearnapp/refearn_backend/services"
)

// LedgerRepository persists commission events and welcome bonuses. Credits
// pair the event insert with the recipient balance increment inside one
// Mongo transaction; the unique (activationEventId, level) index makes
// replays collide instead of double-paying.
type LedgerRepository struct {
	client   *mongo.Client
	events   *mongo.Collection
	bonuses  *mongo.Collection
	accounts *mongo.Collection
}

func NewLedgerRepository(db *mongo.Client) *LedgerRepository {
	return &LedgerRepository{
		client:   db,
		events:   config.GetCollection(db, "commissionEvents"),
		bonuses:  config.GetCollection(db, "welcomeBonuses"),
		accounts: config.GetCollection(db, "accounts"),
	}
}

func (r *LedgerRepository) EventsByActivation(ctx context.Context, activationEventID string) ([]models.CommissionEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.events.Find(ctx, bson.M{"activationEventId": activationEventID}, optionsFindSorted("level", 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.CommissionEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *LedgerRepository) EventsForRecipient(ctx context.Context, accountID primitive.ObjectID) ([]models.CommissionEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.events.Find(ctx, bson.M{"recipientId": accountID}, optionsFindSorted("createdAt", 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.CommissionEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// PostCredit inserts the posted event and increments the recipient's balance
// atomically. A duplicate (activationEventId, level) insert aborts the
// transaction before any balance change.
func (r *LedgerRepository) PostCredit(ctx context.Context, event models.CommissionEvent) (models.CommissionEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	session, err := r.client.StartSession()
	if err != nil {
		return event, fmt.Errorf("%w: %v", services.ErrLedgerWriteConflict, err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.events.InsertOne(sc, event)
		if err != nil {
			return nil, err
		}
		event.ID = res.InsertedID.(primitive.ObjectID)

		_, err = r.accounts.UpdateOne(sc, bson.M{"_id": event.RecipientID}, bson.M{
			"$set": bson.M{"updatedAt": time.Now()},
			"$inc": bson.M{
				"balance":     event.Amount,
				"totalEarned": event.Amount,
			},
		})
		if err != nil {
			return nil, err
		}
		return event, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return event, services.ErrDuplicateActivation
		}
		return event, fmt.Errorf("%w: %v", services.ErrLedgerWriteConflict, err)
	}
	return result.(models.CommissionEvent), nil
}

// RecordRejection appends a non-paying audit event. No balance is touched.
func (r *LedgerRepository) RecordRejection(ctx context.Context, event models.CommissionEvent) (models.CommissionEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.events.InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return event, services.ErrDuplicateActivation
		}
		return event, err
	}
	event.ID = res.InsertedID.(primitive.ObjectID)
	return event, nil
}

// PayWelcomeBonus records the bonus and credits the account in one
// transaction. The unique activationEventId index rejects replays.
func (r *LedgerRepository) PayWelcomeBonus(ctx context.Context, bonus models.WelcomeBonus) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrLedgerWriteConflict, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.bonuses.InsertOne(sc, bonus); err != nil {
			return nil, err
		}
		_, err := r.accounts.UpdateOne(sc, bson.M{"_id": bonus.AccountID}, bson.M{
			"$set": bson.M{"updatedAt": time.Now()},
			"$inc": bson.M{
				"balance":     bonus.Amount,
				"totalEarned": bonus.Amount,
			},
		})
		return nil, err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return services.ErrDuplicateActivation
		}
		return fmt.Errorf("%w: %v", services.ErrLedgerWriteConflict, err)
	}
	return nil
}
