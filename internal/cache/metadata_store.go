package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mealvault/mealvault/internal/models"
)

// RedisMetadataStore caches the latest metadata envelope per post. Entries
// expire after the normalizer's max age, so stale envelopes are never merged.
type RedisMetadataStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMetadataStore creates a metadata cache with the given entry TTL.
func NewRedisMetadataStore(client *redis.Client, ttl time.Duration) *RedisMetadataStore {
	return &RedisMetadataStore{client: client, ttl: ttl}
}

func metadataKey(p models.Platform, contentID string) string {
	return keyPrefix + "metadata:" + string(p) + ":" + contentID
}

func (s *RedisMetadataStore) Get(ctx context.Context, p models.Platform, contentID string) (*models.SocialMediaMetadata, error) {
	raw, err := s.client.Get(ctx, metadataKey(p, contentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}

	var m models.SocialMediaMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &m, nil
}

func (s *RedisMetadataStore) Put(ctx context.Context, m *models.SocialMediaMetadata) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return s.client.Set(ctx, metadataKey(m.Platform, m.ContentID), raw, s.ttl).Err()
}
