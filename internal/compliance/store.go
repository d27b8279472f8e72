package compliance

import (
	"context"
	"sync"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

// StateStore persists per-platform request logs. The in-memory store serves a
// single process; the Redis store in internal/cache shares state between
// instances.
type StateStore interface {
	// Get returns the state for a platform, or a zero state if none exists.
	Get(ctx context.Context, platform models.Platform) (models.RateLimitState, error)

	// Set replaces the state for a platform.
	Set(ctx context.Context, platform models.Platform, state models.RateLimitState) error

	// Delete clears the state for a platform.
	Delete(ctx context.Context, platform models.Platform) error

	// Sweep drops timestamps older than cutoff and returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStateStore keeps request logs in process memory.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[models.Platform]models.RateLimitState
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[models.Platform]models.RateLimitState),
	}
}

// Get returns a copy of the stored state.
func (s *MemoryStateStore) Get(_ context.Context, platform models.Platform) (models.RateLimitState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.states[platform]
	state.Timestamps = append([]time.Time(nil), state.Timestamps...)
	return state, nil
}

// Set stores a copy of state.
func (s *MemoryStateStore) Set(_ context.Context, platform models.Platform, state models.RateLimitState) error {
	state.Timestamps = append([]time.Time(nil), state.Timestamps...)

	s.mu.Lock()
	s.states[platform] = state
	s.mu.Unlock()
	return nil
}

// Delete removes the platform's state.
func (s *MemoryStateStore) Delete(_ context.Context, platform models.Platform) error {
	s.mu.Lock()
	delete(s.states, platform)
	s.mu.Unlock()
	return nil
}

// Sweep prunes every platform's log.
func (s *MemoryStateStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for platform, state := range s.states {
		before := len(state.Timestamps)
		state.Prune(cutoff)
		removed += before - len(state.Timestamps)
		if len(state.Timestamps) == 0 && state.LastRequest.Before(cutoff) {
			delete(s.states, platform)
			continue
		}
		s.states[platform] = state
	}
	return removed, nil
}
