// services/referral_graph.go
package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
)

// MaxCommissionLevels bounds how far up the referral chain commissions
// cascade.
const MaxCommissionLevels = 3

// GraphEdgeReader loads referral edges for chain resolution. ByReferee
// returns (nil, nil) when the referee has no edge.
type GraphEdgeReader interface {
	ByReferee(ctx context.Context, refereeID primitive.ObjectID) (*models.ReferralEdge, error)
}

// ReferralGraph walks the referral forest upward from an activating user.
type ReferralGraph struct {
	edges GraphEdgeReader
}

func NewReferralGraph(edges GraphEdgeReader) *ReferralGraph {
	return &ReferralGraph{edges: edges}
}

// ResolveAncestors returns up to maxLevels ancestors of the referee, level 1
// being the direct referrer. The walk stops early on a missing edge, a
// fraud-suspected edge, or a repeated account. Edges are supposed to form a
// forest, but corrupted data must never hang the walk, so the visited set is
// checked on every hop.
func (g *ReferralGraph) ResolveAncestors(ctx context.Context, refereeID primitive.ObjectID, maxLevels int) ([]models.Ancestor, error) {
	if maxLevels <= 0 || maxLevels > MaxCommissionLevels {
		maxLevels = MaxCommissionLevels
	}

	visited := map[primitive.ObjectID]bool{refereeID: true}
	ancestors := make([]models.Ancestor, 0, maxLevels)

	current := refereeID
	for level := 1; level <= maxLevels; level++ {
		edge, err := g.edges.ByReferee(ctx, current)
		if err != nil {
			return ancestors, err
		}
		if edge == nil || edge.FraudSuspected {
			break
		}
		if visited[edge.ReferrerID] {
			break
		}
		visited[edge.ReferrerID] = true
		ancestors = append(ancestors, models.Ancestor{Level: level, AccountID: edge.ReferrerID})
		current = edge.ReferrerID
	}
	return ancestors, nil
}
