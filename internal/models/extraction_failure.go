package models

import (
	"time"
)

// ExtractionFailure is a classified extraction error kept for operators.
type ExtractionFailure struct {
	ID         string     `json:"id"`
	Platform   string     `json:"platform"` // e.g., "instagram", "foodblog"
	Kind       string     `json:"kind"`     // e.g., "TIMEOUT", "NOT_FOUND"
	URL        string     `json:"url"`
	Message    string     `json:"message"`
	JobID      string     `json:"jobId,omitempty"` // set when the failure happened inside an import
	CreatedAt  time.Time  `json:"createdAt"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}
