package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

func TestMemoryStateStoreCopies(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	state := models.RateLimitState{Timestamps: []time.Time{testStart}, LastRequest: testStart}
	if err := store.Set(ctx, models.PlatformTikTok, state); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	state.Timestamps[0] = testStart.Add(time.Hour)

	got, _ := store.Get(ctx, models.PlatformTikTok)
	if !got.Timestamps[0].Equal(testStart) {
		t.Error("store shares the caller's slice")
	}
}

func TestMemoryStateStoreSweep(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	store.Set(ctx, models.PlatformTikTok, models.RateLimitState{
		Timestamps:  []time.Time{testStart, testStart.Add(2 * time.Hour)},
		LastRequest: testStart.Add(2 * time.Hour),
	})
	store.Set(ctx, models.PlatformEmail, models.RateLimitState{
		Timestamps:  []time.Time{testStart},
		LastRequest: testStart,
	})

	removed, err := store.Sweep(ctx, testStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}

	tiktok, _ := store.Get(ctx, models.PlatformTikTok)
	if len(tiktok.Timestamps) != 1 {
		t.Errorf("tiktok kept %d timestamps, want 1", len(tiktok.Timestamps))
	}
	email, _ := store.Get(ctx, models.PlatformEmail)
	if len(email.Timestamps) != 0 {
		t.Errorf("email kept %d timestamps, want 0", len(email.Timestamps))
	}
}
