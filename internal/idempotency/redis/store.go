package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Providers retry webhooks for at most a few days; entries past the TTL can
// only correspond to deliveries that will never come again.
const defaultTTL = 72 * time.Hour

// Store keeps the processed-events ledger in Redis with an expiry, sharing
// duplicate suppression across replicas without growing unboundedly.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Mark(ctx context.Context, eventID, orderID string) error {
	if err := s.client.Set(ctx, key(eventID), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("mark processed event: %w", err)
	}
	return nil
}

func key(eventID string) string {
	return "webhook:event:" + eventID
}
