package models

import (
	"testing"
	"time"
)

func TestImportStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     ImportStatus
		to       ImportStatus
		expected bool
	}{
		{ImportStatusPending, ImportStatusRunning, true},
		{ImportStatusPending, ImportStatusFailed, false},
		{ImportStatusPending, ImportStatusCompleted, false},
		{ImportStatusRunning, ImportStatusCompleted, true},
		{ImportStatusRunning, ImportStatusFailed, true},
		{ImportStatusRunning, ImportStatusPending, false},
		{ImportStatusCompleted, ImportStatusRunning, false},
		{ImportStatusFailed, ImportStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestImportJob_CloneIsDeep(t *testing.T) {
	eta := int64(500)
	done := time.Now()
	job := &ImportJob{
		ID:                   "job-1",
		Errors:               []string{"first"},
		EstimatedMsRemaining: &eta,
		CompletedAt:          &done,
		Summary:              &ImportSummary{Successes: 1},
	}

	cp := job.Clone()
	cp.Errors[0] = "changed"
	*cp.EstimatedMsRemaining = 0
	cp.Summary.Successes = 9

	if job.Errors[0] != "first" {
		t.Error("clone shares errors slice")
	}
	if *job.EstimatedMsRemaining != 500 {
		t.Error("clone shares ETA pointer")
	}
	if job.Summary.Successes != 1 {
		t.Error("clone shares summary pointer")
	}

	var nilJob *ImportJob
	if nilJob.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}
