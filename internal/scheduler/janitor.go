// Package scheduler runs periodic housekeeping for the extraction service.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper evicts expired records and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepFunc adapts a function to Sweeper.
type SweepFunc func(ctx context.Context) (int, error)

func (f SweepFunc) Sweep(ctx context.Context) (int, error) { return f(ctx) }

// Janitor periodically sweeps expired import jobs and rate-limit history.
type Janitor struct {
	sweepers      map[string]Sweeper
	logger        *slog.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	checkInterval time.Duration
}

// NewJanitor creates a janitor. interval <= 0 defaults to 10 minutes.
func NewJanitor(interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{
		sweepers:      make(map[string]Sweeper),
		logger:        logger,
		stopChan:      make(chan struct{}),
		checkInterval: interval,
	}
}

// Add registers a named sweeper. Call before Start.
func (j *Janitor) Add(name string, s Sweeper) {
	j.sweepers[name] = s
}

// Start begins the janitor loop and blocks until Stop or ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Janitor started", "check_interval", j.checkInterval, "sweepers", len(j.sweepers))
	ticker := time.NewTicker(j.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopChan:
			j.logger.Info("Janitor stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Janitor stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the janitor. It is safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// RunOnce runs every sweeper and returns the total removed.
func (j *Janitor) RunOnce(ctx context.Context) int {
	total := 0
	for name, s := range j.sweepers {
		removed, err := s.Sweep(ctx)
		if err != nil {
			j.logger.Error("Sweep failed", "sweeper", name, "error", err)
			continue
		}
		if removed > 0 {
			j.logger.Info("Swept expired records", "sweeper", name, "removed", removed)
		}
		total += removed
	}
	return total
}
