package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "talkbridge:webhook:"

// DedupRepository claims webhook event ids in redis so redelivered batches
// do not append the same message twice. Claims expire after the TTL; the
// platform does not redeliver beyond that window.
type DedupRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDedupRepository(client *redis.Client, ttl time.Duration) *DedupRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &DedupRepository{
		client: client,
		ttl:    ttl,
	}
}

// Claim returns true when the event id has not been seen before.
func (r *DedupRepository) Claim(ctx context.Context, eventID string) (bool, error) {
	claimed, err := r.client.SetNX(ctx, dedupKeyPrefix+eventID, "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook event %s: %w", eventID, err)
	}

	return claimed, nil
}
