package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	j := NewJanitor(time.Minute, discardLogger())
	j.Add("jobs", SweepFunc(func(context.Context) (int, error) { return 2, nil }))
	j.Add("limits", SweepFunc(func(context.Context) (int, error) { return 3, nil }))
	j.Add("broken", SweepFunc(func(context.Context) (int, error) { return 9, errors.New("redis down") }))

	if got := j.RunOnce(context.Background()); got != 5 {
		t.Errorf("RunOnce() = %d, want 5", got)
	}
}

func TestStartStops(t *testing.T) {
	j := NewJanitor(5*time.Millisecond, discardLogger())
	var calls atomic.Int32
	j.Add("count", SweepFunc(func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	}))

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("janitor never swept")
		case <-time.After(time.Millisecond):
		}
	}
	j.Stop()
	j.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestStartHonorsContext(t *testing.T) {
	j := NewJanitor(time.Hour, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor ignored cancellation")
	}
}
