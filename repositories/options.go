// repositories/options.go
package repositories

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func optionsFindSorted(field string, limit int64) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: field, Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return opts
}
