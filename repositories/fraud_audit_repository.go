// repositories/fraud_audit_repository.go
package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refearnapp/refearn_backend/config"
	"github.com/refearnapp/refearn_backend/models"
)

// FraudAuditRepository appends gate rejections for later review.
type FraudAuditRepository struct {
	collection *mongo.Collection
}

func NewFraudAuditRepository(db *mongo.Client) *FraudAuditRepository {
	return &FraudAuditRepository{
		collection: config.GetCollection(db, "fraudAudits"),
	}
}

func (r *FraudAuditRepository) Record(ctx context.Context, audit models.FraudAudit) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, audit)
	return err
}
