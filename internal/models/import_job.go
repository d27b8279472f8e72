package models

import "time"

// ImportStatus is the lifecycle state of an import job.
type ImportStatus string

const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// CanTransitionTo enforces pending -> running -> {completed, failed}.
func (s ImportStatus) CanTransitionTo(next ImportStatus) bool {
	switch s {
	case ImportStatusPending:
		return next == ImportStatusRunning
	case ImportStatusRunning:
		return next == ImportStatusCompleted || next == ImportStatusFailed
	}
	return false
}

// ImportJob tracks a batch import. Snapshots handed out by the tracker are
// copies; the driver mutates its own record and persists it after every item.
type ImportJob struct {
	ID                   string         `json:"id"`
	Status               ImportStatus   `json:"status"`
	TotalItems           int            `json:"totalItems"`
	ProcessedItems       int            `json:"processedItems"`
	SuccessCount         int            `json:"successCount"`
	FailureCount         int            `json:"failureCount"`
	CurrentItemLabel     string         `json:"currentItemLabel,omitempty"`
	Errors               []string       `json:"errors"`
	StartedAt            time.Time      `json:"startedAt"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
	EstimatedMsRemaining *int64         `json:"estimatedMsRemaining,omitempty"`
	Summary              *ImportSummary `json:"summary,omitempty"`
}

// ImportSummary is computed once a job completes.
type ImportSummary struct {
	Successes   int   `json:"successes"`
	Failures    int   `json:"failures"`
	SuccessRate int   `json:"successRate"` // percent, rounded
	DurationMs  int64 `json:"durationMs"`
}

// Clone returns a deep copy safe to hand to pollers.
func (j *ImportJob) Clone() *ImportJob {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Errors = append([]string{}, j.Errors...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.EstimatedMsRemaining != nil {
		v := *j.EstimatedMsRemaining
		cp.EstimatedMsRemaining = &v
	}
	if j.Summary != nil {
		s := *j.Summary
		cp.Summary = &s
	}
	return &cp
}
