// repositories/edge_repository.go
package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refearnapp/refearn_backend/config"
	"github.com/refearnapp/refearn_backend/models"
)

// EdgeRepository wraps the referralEdges collection. Edges are immutable
// after creation except the fraud flag.
type EdgeRepository struct {
	collection *mongo.Collection
}

func NewEdgeRepository(db *mongo.Client) *EdgeRepository {
	return &EdgeRepository{
		collection: config.GetCollection(db, "referralEdges"),
	}
}

func (r *EdgeRepository) Create(ctx context.Context, edge *models.ReferralEdge) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.InsertOne(ctx, edge)
	if err != nil {
		return err
	}
	edge.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// ByReferee returns the referee's single inbound edge, or (nil, nil) when
// none exists.
func (r *EdgeRepository) ByReferee(ctx context.Context, refereeID primitive.ObjectID) (*models.ReferralEdge, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var edge models.ReferralEdge
	err := r.collection.FindOne(ctx, bson.M{"refereeId": refereeID}).Decode(&edge)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &edge, nil
}

// MarkFraudSuspected flags the referee's edge. The flag excludes the edge
// from commission walks; the referral relationship itself stays recorded.
func (r *EdgeRepository) MarkFraudSuspected(ctx context.Context, refereeID primitive.ObjectID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"refereeId": refereeID}, bson.M{
		"$set": bson.M{
			"fraudSuspected": true,
			"fraudReason":    reason,
		},
	})
	return err
}

func (r *EdgeRepository) CountByReferrer(ctx context.Context, referrerID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.collection.CountDocuments(ctx, bson.M{"referrerId": referrerID})
}

// RecentReferrals counts edges the referrer produced inside the sliding
// window. This is the store-backed burst counter used when Redis is absent.
func (r *EdgeRepository) RecentReferrals(ctx context.Context, referrerID primitive.ObjectID, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"referrerId": referrerID,
		"createdAt":  bson.M{"$gt": time.Now().Add(-window)},
	}
	return r.collection.CountDocuments(ctx, filter)
}
