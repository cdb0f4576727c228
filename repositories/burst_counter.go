// repositories/burst_counter.go
package repositories

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RedisBurstCounter tracks per-referrer signup bursts in a Redis sorted set
// scored by timestamp. Keys expire on their own so idle referrers cost
// nothing.
type RedisBurstCounter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBurstCounter(client *redis.Client, ttl time.Duration) *RedisBurstCounter {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisBurstCounter{client: client, ttl: ttl}
}

func burstKey(referrerID primitive.ObjectID) string {
	return "fraud:referrals:" + referrerID.Hex()
}

// Record registers one new referral edge for the referrer.
func (c *RedisBurstCounter) Record(ctx context.Context, referrerID primitive.ObjectID, at time.Time) error {
	key := burstKey(referrerID)
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(at.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// RecentReferrals trims entries older than the window and returns the
// remaining count.
func (c *RedisBurstCounter) RecentReferrals(ctx context.Context, referrerID primitive.ObjectID, window time.Duration) (int64, error) {
	key := burstKey(referrerID)
	cutoff := strconv.FormatInt(time.Now().Add(-window).UnixNano(), 10)
	if err := c.client.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err(); err != nil {
		return 0, err
	}
	return c.client.ZCard(ctx, key).Result()
}
