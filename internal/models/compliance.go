package models

import "time"

// RateLimitPolicy configures quotas and policy flags for one platform.
// A zero request limit leaves that window unlimited.
type RateLimitPolicy struct {
	RequestsPerMinute  int           `json:"requestsPerMinute" yaml:"requests_per_minute"`
	RequestsPerHour    int           `json:"requestsPerHour" yaml:"requests_per_hour"`
	RequestsPerDay     int           `json:"requestsPerDay" yaml:"requests_per_day"`
	BurstLimit         int           `json:"burstLimit" yaml:"burst_limit"`
	CooldownPeriod     time.Duration `json:"cooldownPeriod" yaml:"cooldown_period"`
	RespectRobotsTxt   bool          `json:"respectRobotsTxt" yaml:"respect_robots_txt"`
	RetryAfterHeader   bool          `json:"retryAfterHeader" yaml:"retry_after_header"`
	ExponentialBackoff bool          `json:"exponentialBackoff" yaml:"exponential_backoff"`
}

// LongestWindow returns the widest window any limit in the policy applies to.
func (p RateLimitPolicy) LongestWindow() time.Duration {
	window := p.CooldownPeriod
	if p.RequestsPerMinute > 0 && window < time.Minute {
		window = time.Minute
	}
	if p.RequestsPerHour > 0 && window < time.Hour {
		window = time.Hour
	}
	if p.RequestsPerDay > 0 && window < 24*time.Hour {
		window = 24 * time.Hour
	}
	return window
}

// RateLimitState is the request log kept for one platform. Timestamps are
// non-decreasing.
type RateLimitState struct {
	Timestamps  []time.Time `json:"timestamps"`
	LastRequest time.Time   `json:"lastRequest"`
}

// Prune drops timestamps older than cutoff.
func (s *RateLimitState) Prune(cutoff time.Time) {
	i := 0
	for i < len(s.Timestamps) && s.Timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		s.Timestamps = append([]time.Time(nil), s.Timestamps[i:]...)
	}
}

// CountSince returns how many requests happened after cutoff.
func (s *RateLimitState) CountSince(cutoff time.Time) int {
	n := 0
	for i := len(s.Timestamps) - 1; i >= 0; i-- {
		if !s.Timestamps[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}

// ComplianceValidation is the outcome of a policy (non-quota) check.
type ComplianceValidation struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"reason,omitempty"`
}

// RequestStats summarizes a platform's request log.
type RequestStats struct {
	TotalRequests      int           `json:"totalRequests"`
	RequestsLastHour   int           `json:"requestsLastHour"`
	RequestsLastMinute int           `json:"requestsLastMinute"`
	AverageInterval    time.Duration `json:"averageInterval"`
}

// RetrySettings controls how callers retry retryable extraction failures.
type RetrySettings struct {
	MaxRetries     int           `json:"maxRetries"`
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	BackoffFactor  float64       `json:"backoffFactor"`
}

// ComplianceConfig holds global settings handed to scraper collaborators.
type ComplianceConfig struct {
	UserAgent           string        `json:"userAgent"`
	MaxRedirects        int           `json:"maxRedirects"`
	Timeout             time.Duration `json:"timeout"`
	Retry               RetrySettings `json:"retry"`
	BlockedPathPatterns []string      `json:"blockedPathPatterns"`
}
