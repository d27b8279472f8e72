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

// RedisStateStore keeps each platform's request log as a JSON document.
// Writes are last-writer-wins; the limiter serializes callers per process.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore creates a state store. Logs untouched for ttl expire.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

func stateKey(p models.Platform) string {
	return keyPrefix + "ratelimit:" + string(p)
}

func (s *RedisStateStore) Get(ctx context.Context, p models.Platform) (models.RateLimitState, error) {
	raw, err := s.client.Get(ctx, stateKey(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RateLimitState{}, nil
	}
	if err != nil {
		return models.RateLimitState{}, fmt.Errorf("get rate limit state: %w", err)
	}

	var state models.RateLimitState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.RateLimitState{}, fmt.Errorf("decode rate limit state: %w", err)
	}
	return state, nil
}

func (s *RedisStateStore) Set(ctx context.Context, p models.Platform, state models.RateLimitState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode rate limit state: %w", err)
	}
	return s.client.Set(ctx, stateKey(p), raw, s.ttl).Err()
}

func (s *RedisStateStore) Delete(ctx context.Context, p models.Platform) error {
	return s.client.Del(ctx, stateKey(p)).Err()
}

// Sweep prunes every known platform's log.
func (s *RedisStateStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, p := range models.AllPlatforms() {
		state, err := s.Get(ctx, p)
		if err != nil {
			return removed, err
		}
		if len(state.Timestamps) == 0 && state.LastRequest.IsZero() {
			continue
		}

		before := len(state.Timestamps)
		state.Prune(cutoff)
		removed += before - len(state.Timestamps)

		if len(state.Timestamps) == 0 && state.LastRequest.Before(cutoff) {
			err = s.Delete(ctx, p)
		} else if before != len(state.Timestamps) {
			err = s.Set(ctx, p, state)
		}
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}
