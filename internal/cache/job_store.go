package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mealvault/mealvault/internal/jobs"
	"github.com/mealvault/mealvault/internal/models"
)

const jobIndexKey = keyPrefix + "jobs:index"

// RedisJobStore keeps import job snapshots so any instance can answer status
// polls. A sorted set indexed by start time drives Sweep.
type RedisJobStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisJobStore creates a job store. Records also carry a TTL of twice the
// retention window in case the janitor stops running.
func NewRedisJobStore(client *redis.Client, retention time.Duration) *RedisJobStore {
	if retention <= 0 {
		retention = jobs.DefaultRetention
	}
	return &RedisJobStore{client: client, retention: retention}
}

func jobKey(id string) string {
	return keyPrefix + "job:" + id
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}

	var job models.ImportJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode import job: %w", err)
	}
	return &job, nil
}

func (s *RedisJobStore) Save(ctx context.Context, job *models.ImportJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode import job: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, jobKey(job.ID), raw, 2*s.retention)
		p.ZAdd(ctx, jobIndexKey, redis.Z{Score: float64(job.StartedAt.Unix()), Member: job.ID})
		return nil
	})
	return err
}

func (s *RedisJobStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, jobKey(id))
		p.ZRem(ctx, jobIndexKey, id)
		return nil
	})
	return err
}

func (s *RedisJobStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, jobIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired jobs: %w", err)
	}

	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
