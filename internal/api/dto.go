package api

import (
	"time"

	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

// Durations cross the wire as milliseconds.

type policyDTO struct {
	RequestsPerMinute  int   `json:"requestsPerMinute"`
	RequestsPerHour    int   `json:"requestsPerHour"`
	RequestsPerDay     int   `json:"requestsPerDay"`
	BurstLimit         int   `json:"burstLimit"`
	CooldownPeriodMs   int64 `json:"cooldownPeriodMs"`
	RespectRobotsTxt   bool  `json:"respectRobotsTxt"`
	RetryAfterHeader   bool  `json:"retryAfterHeader"`
	ExponentialBackoff bool  `json:"exponentialBackoff"`
}

func toPolicyDTO(p models.RateLimitPolicy) policyDTO {
	return policyDTO{
		RequestsPerMinute:  p.RequestsPerMinute,
		RequestsPerHour:    p.RequestsPerHour,
		RequestsPerDay:     p.RequestsPerDay,
		BurstLimit:         p.BurstLimit,
		CooldownPeriodMs:   p.CooldownPeriod.Milliseconds(),
		RespectRobotsTxt:   p.RespectRobotsTxt,
		RetryAfterHeader:   p.RetryAfterHeader,
		ExponentialBackoff: p.ExponentialBackoff,
	}
}

func (d policyDTO) model() models.RateLimitPolicy {
	return models.RateLimitPolicy{
		RequestsPerMinute:  d.RequestsPerMinute,
		RequestsPerHour:    d.RequestsPerHour,
		RequestsPerDay:     d.RequestsPerDay,
		BurstLimit:         d.BurstLimit,
		CooldownPeriod:     time.Duration(d.CooldownPeriodMs) * time.Millisecond,
		RespectRobotsTxt:   d.RespectRobotsTxt,
		RetryAfterHeader:   d.RetryAfterHeader,
		ExponentialBackoff: d.ExponentialBackoff,
	}
}

type retryDTO struct {
	MaxRetries       int     `json:"maxRetries"`
	InitialBackoffMs int64   `json:"initialBackoffMs"`
	MaxBackoffMs     int64   `json:"maxBackoffMs"`
	BackoffFactor    float64 `json:"backoffFactor"`
}

type complianceConfigDTO struct {
	UserAgent           string   `json:"userAgent"`
	MaxRedirects        int      `json:"maxRedirects"`
	TimeoutMs           int64    `json:"timeoutMs"`
	Retry               retryDTO `json:"retry"`
	BlockedPathPatterns []string `json:"blockedPathPatterns"`
}

func toComplianceConfigDTO(c models.ComplianceConfig) complianceConfigDTO {
	blocked := c.BlockedPathPatterns
	if blocked == nil {
		blocked = []string{}
	}
	return complianceConfigDTO{
		UserAgent:    c.UserAgent,
		MaxRedirects: c.MaxRedirects,
		TimeoutMs:    c.Timeout.Milliseconds(),
		Retry: retryDTO{
			MaxRetries:       c.Retry.MaxRetries,
			InitialBackoffMs: c.Retry.InitialBackoff.Milliseconds(),
			MaxBackoffMs:     c.Retry.MaxBackoff.Milliseconds(),
			BackoffFactor:    c.Retry.BackoffFactor,
		},
		BlockedPathPatterns: blocked,
	}
}

func (d complianceConfigDTO) model() models.ComplianceConfig {
	return models.ComplianceConfig{
		UserAgent:    d.UserAgent,
		MaxRedirects: d.MaxRedirects,
		Timeout:      time.Duration(d.TimeoutMs) * time.Millisecond,
		Retry: models.RetrySettings{
			MaxRetries:     d.Retry.MaxRetries,
			InitialBackoff: time.Duration(d.Retry.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(d.Retry.MaxBackoffMs) * time.Millisecond,
			BackoffFactor:  d.Retry.BackoffFactor,
		},
		BlockedPathPatterns: d.BlockedPathPatterns,
	}
}

type statsDTO struct {
	Platform             models.Platform `json:"platform"`
	TotalRequests        int             `json:"totalRequests"`
	RequestsLastHour     int             `json:"requestsLastHour"`
	RequestsLastMinute   int             `json:"requestsLastMinute"`
	AverageIntervalMs    int64           `json:"averageIntervalMs"`
	IsRateLimited        bool            `json:"isRateLimited"`
	TimeUntilNextRequest int64           `json:"timeUntilNextRequestMs"`
}

type optionsDTO struct {
	UserAgent       string `json:"userAgent,omitempty"`
	TimeoutMs       int64  `json:"timeoutMs,omitempty"`
	MaxRedirects    int    `json:"maxRedirects,omitempty"`
	IncludeComments bool   `json:"includeComments,omitempty"`
	Language        string `json:"language,omitempty"`
}

func (d optionsDTO) model() extraction.Options {
	return extraction.Options{
		UserAgent:       d.UserAgent,
		Timeout:         time.Duration(d.TimeoutMs) * time.Millisecond,
		MaxRedirects:    d.MaxRedirects,
		IncludeComments: d.IncludeComments,
		Language:        d.Language,
	}
}

// extractResponse is the success envelope for every extraction route.
type extractResponse struct {
	Success  bool                        `json:"success"`
	Recipe   *models.CanonicalRecipe     `json:"recipe"`
	Metadata *models.SocialMediaMetadata `json:"metadata,omitempty"`
	Platform models.Platform             `json:"platform"`
}

func toExtractResponse(res *extraction.Result) extractResponse {
	return extractResponse{Success: true, Recipe: res.Recipe, Metadata: res.Metadata, Platform: res.Platform}
}
