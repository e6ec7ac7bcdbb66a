package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// EntityCache is an optional redis read-through cache for entity lookups by
// external id. The mutator invalidates touched ids after every commit, so a
// hit can be at most one TTL stale after a crashed invalidation.
type EntityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEntityCache connects to redis and verifies the connection.
func NewEntityCache(redisURL string, ttl time.Duration) (*EntityCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &EntityCache{client: client, ttl: ttl}, nil
}

func entityKey(kind Kind, externalID string) string {
	return fmt.Sprintf("entity:%s:%s", kind, externalID)
}

// Get returns the cached entity, or (nil, nil) on a miss.
func (c *EntityCache) Get(ctx context.Context, kind Kind, externalID string) (*PathEntity, error) {
	key := entityKey(kind, externalID)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var e PathEntity
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		// Corrupt entries are dropped rather than surfaced.
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal cached entity: %w", err)
	}
	return &e, nil
}

// Set stores an entity under its external id for the configured TTL.
func (c *EntityCache) Set(ctx context.Context, e *PathEntity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	return c.client.Set(ctx, entityKey(e.Kind, e.ExternalID), data, c.ttl).Err()
}

// Invalidate drops an external id from every kind's keyspace. Mutations
// know the id but not always the kind of every touched row, so all three
// kind keys are cleared.
func (c *EntityCache) Invalidate(ctx context.Context, externalID string) error {
	keys := []string{
		entityKey(KindPage, externalID),
		entityKey(KindAssetFolder, externalID),
		entityKey(KindDataFolder, externalID),
	}
	return c.client.Del(ctx, keys...).Err()
}

// Ping checks redis connectivity for health reporting.
func (c *EntityCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the redis connection.
func (c *EntityCache) Close() error {
	return c.client.Close()
}
