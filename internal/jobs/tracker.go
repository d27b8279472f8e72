// Package jobs runs multi-item imports in the background and exposes their
// progress as pollable snapshots.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/models"
)

// DefaultRetention is how long job records are kept after they start.
const DefaultRetention = 24 * time.Hour

// DefaultMaxErrors bounds the per-job error list.
const DefaultMaxErrors = 100

var (
	// ErrNoItems is returned when an import has nothing to process.
	ErrNoItems = errors.New("import has no items")
	// ErrFinished is returned when cancelling a job that already ended.
	ErrFinished = errors.New("import job already finished")
)

// Item is one unit of work in an import.
type Item struct {
	Label    string
	// Platform selects the per-platform retry flags. Empty uses Config.Retry as is.
	Platform models.Platform
	Process  func(ctx context.Context, jobID string) error
}

// PolicySource looks up platform rate-limit policies; the compliance limiter
// implements it.
type PolicySource interface {
	Policy(p models.Platform) (models.RateLimitPolicy, bool)
}

// Observer receives job lifecycle events; the metrics package implements it.
type Observer interface {
	ObserveJob(status models.ImportStatus, d time.Duration)
	ObserveItem(success bool)
}

// Config tunes a Tracker.
type Config struct {
	Retention     time.Duration
	MaxErrors     int
	MaxConcurrent int // 0 means unlimited
	Retry         RetryPolicy
	Policies      PolicySource // optional
	Clock         clock.Clock
	Observer      Observer
}

// Tracker owns import drivers and their cancellation handles.
type Tracker struct {
	store    Store
	cfg      Config
	clock    clock.Clock
	observer Observer
	logger   *slog.Logger
	slots    chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewTracker creates a tracker backed by store.
func NewTracker(store Store, cfg Config, logger *slog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = DefaultMaxErrors
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		store:    store,
		cfg:      cfg,
		clock:    cfg.Clock,
		observer: cfg.Observer,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
	if cfg.MaxConcurrent > 0 {
		t.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return t
}

// CreateImport records a pending job and starts its driver in the background.
// It returns before any item is processed. The driver is detached from ctx;
// use Cancel to stop it.
func (t *Tracker) CreateImport(ctx context.Context, items []Item) (string, error) {
	if len(items) == 0 {
		return "", ErrNoItems
	}

	job := &models.ImportJob{
		ID:         uuid.New().String(),
		Status:     models.ImportStatusPending,
		TotalItems: len(items),
		Errors:     []string{},
		StartedAt:  t.clock.Now().UTC(),
	}
	if err := t.store.Save(ctx, job); err != nil {
		return "", fmt.Errorf("save import job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.mu.Lock()
	t.cancels[job.ID] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.drive(runCtx, job, append([]Item(nil), items...))

	t.logger.Info("import job created", "job_id", job.ID, "items", len(items))
	return job.ID, nil
}

// Status returns a snapshot of the job.
func (t *Tracker) Status(ctx context.Context, id string) (*models.ImportJob, error) {
	return t.store.Get(ctx, id)
}

// Cancel signals the job's driver to stop before its next item. The job ends
// as failed.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	job, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return ErrFinished
	}

	t.mu.Lock()
	cancel, ok := t.cancels[id]
	t.mu.Unlock()
	if !ok {
		// Driver lives in another process or already returned.
		return ErrFinished
	}
	cancel()
	t.logger.Info("import job cancellation requested", "job_id", id)
	return nil
}

// Sweep evicts jobs older than the retention window, whatever their status.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	return t.store.Sweep(ctx, t.clock.Now().Add(-t.cfg.Retention))
}

// Wait blocks until every driver has returned.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Shutdown cancels running drivers and waits for them or for ctx.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) drive(ctx context.Context, job *models.ImportJob, items []Item) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		if cancel, ok := t.cancels[job.ID]; ok {
			cancel()
			delete(t.cancels, job.ID)
		}
		t.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("import driver panicked", "job_id", job.ID, "panic", r)
			t.fail(job, fmt.Sprintf("import aborted: %v", r))
		}
	}()

	if t.slots != nil {
		select {
		case t.slots <- struct{}{}:
			defer func() { <-t.slots }()
		case <-ctx.Done():
			// failed is only reachable from running.
			t.transition(job, models.ImportStatusRunning)
			t.fail(job, "import cancelled before it started")
			return
		}
	}

	t.transition(job, models.ImportStatusRunning)
	t.save(job)
	started := t.clock.Now()

	for _, item := range items {
		if ctx.Err() != nil {
			t.fail(job, fmt.Sprintf("import cancelled after %d of %d items", job.ProcessedItems, job.TotalItems))
			return
		}

		job.CurrentItemLabel = item.Label
		t.save(job)

		err := Retry(ctx, t.clock, t.retryPolicy(item.Platform), func(ctx context.Context) error {
			return item.Process(ctx, job.ID)
		})

		job.ProcessedItems++
		if err != nil {
			job.FailureCount++
			t.appendError(job, fmt.Sprintf("%s: %v", item.Label, err))
		} else {
			job.SuccessCount++
		}
		if t.observer != nil {
			t.observer.ObserveItem(err == nil)
		}

		elapsed := t.clock.Now().Sub(started)
		remaining := int64(job.TotalItems - job.ProcessedItems)
		eta := elapsed.Milliseconds() / int64(job.ProcessedItems) * remaining
		job.EstimatedMsRemaining = &eta
		t.save(job)
	}

	t.complete(job, t.clock.Now().Sub(started))
}

func (t *Tracker) retryPolicy(p models.Platform) RetryPolicy {
	if p == "" || t.cfg.Policies == nil {
		return t.cfg.Retry
	}
	rl, ok := t.cfg.Policies.Policy(p)
	if !ok {
		return t.cfg.Retry
	}
	return t.cfg.Retry.ForPlatform(rl)
}

func (t *Tracker) complete(job *models.ImportJob, elapsed time.Duration) {
	t.transition(job, models.ImportStatusCompleted)
	t.finish(job)

	zero := int64(0)
	job.EstimatedMsRemaining = &zero
	rate := 0
	if job.TotalItems > 0 {
		rate = int(math.Round(float64(job.SuccessCount) / float64(job.TotalItems) * 100))
	}
	job.Summary = &models.ImportSummary{
		Successes:   job.SuccessCount,
		Failures:    job.FailureCount,
		SuccessRate: rate,
		DurationMs:  elapsed.Milliseconds(),
	}
	t.save(job)

	t.logger.Info("import job completed",
		"job_id", job.ID,
		"successes", job.SuccessCount,
		"failures", job.FailureCount,
		"duration", elapsed,
	)
	if t.observer != nil {
		t.observer.ObserveJob(job.Status, elapsed)
	}
}

func (t *Tracker) fail(job *models.ImportJob, reason string) {
	t.transition(job, models.ImportStatusFailed)
	t.finish(job)
	t.appendError(job, reason)
	t.save(job)

	t.logger.Warn("import job failed", "job_id", job.ID, "reason", reason)
	if t.observer != nil {
		t.observer.ObserveJob(job.Status, t.clock.Now().Sub(job.StartedAt))
	}
}

func (t *Tracker) finish(job *models.ImportJob) {
	now := t.clock.Now().UTC()
	job.CompletedAt = &now
	job.CurrentItemLabel = ""
}

func (t *Tracker) transition(job *models.ImportJob, next models.ImportStatus) {
	if !job.Status.CanTransitionTo(next) {
		t.logger.Error("invalid import status transition", "job_id", job.ID, "from", job.Status, "to", next)
		return
	}
	job.Status = next
}

// appendError keeps the list ordered and bounded; the last slot notes that
// further errors were dropped.
func (t *Tracker) appendError(job *models.ImportJob, msg string) {
	switch n := len(job.Errors); {
	case n < t.cfg.MaxErrors-1:
		job.Errors = append(job.Errors, msg)
	case n == t.cfg.MaxErrors-1:
		job.Errors = append(job.Errors, "further errors omitted")
	}
}

func (t *Tracker) save(job *models.ImportJob) {
	if err := t.store.Save(context.Background(), job); err != nil {
		t.logger.Error("failed to save import job", "job_id", job.ID, "error", err)
	}
}
