package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

// ErrNotFound is returned for unknown or evicted job ids.
var ErrNotFound = errors.New("import job not found")

// Store persists job snapshots. Implementations must copy on the way in and
// out so callers never share a record with the driver.
type Store interface {
	Get(ctx context.Context, id string) (*models.ImportJob, error)
	Save(ctx context.Context, job *models.ImportJob) error
	Delete(ctx context.Context, id string) error
	// Sweep removes jobs started before cutoff and returns how many.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.ImportJob
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.ImportJob)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, job *models.ImportJob) error {
	cp := job.Clone()
	s.mu.Lock()
	s.jobs[cp.ID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.StartedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}
