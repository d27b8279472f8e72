// Package compliance enforces per-platform request quotas and usage policies
// before any scraper collaborator is contacted.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/detector"
	"github.com/mealvault/mealvault/internal/models"
)

// statsWindow is the minimum history kept so request stats stay meaningful
// for platforms with short windows.
const statsWindow = time.Hour

// GateObserver receives limiter events; the metrics package implements it.
type GateObserver interface {
	ObservePermit(platform models.Platform, waited time.Duration)
	ObserveRejection(platform models.Platform, reason string)
}

// Config wires a Limiter.
type Config struct {
	Policies   map[models.Platform]models.RateLimitPolicy
	Compliance models.ComplianceConfig
	Clock      clock.Clock
	Robots     RobotsChecker
	Observer   GateObserver
}

// Limiter is the per-platform compliance gate.
type Limiter struct {
	store    StateStore
	clock    clock.Clock
	robots   RobotsChecker
	observer GateObserver
	logger   *slog.Logger

	mu       sync.RWMutex
	policies map[models.Platform]models.RateLimitPolicy
	config   models.ComplianceConfig
	blocked  []*regexp.Regexp

	gatesMu sync.Mutex
	gates   map[models.Platform]chan struct{}
}

// NewLimiter creates a limiter. Missing policies fall back to DefaultPolicies
// and a zero compliance config falls back to DefaultComplianceConfig.
func NewLimiter(cfg Config, store StateStore, logger *slog.Logger) (*Limiter, error) {
	if store == nil {
		store = NewMemoryStateStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Policies == nil {
		cfg.Policies = DefaultPolicies()
	}
	if cfg.Compliance.UserAgent == "" {
		cfg.Compliance = DefaultComplianceConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Limiter{
		store:    store,
		clock:    cfg.Clock,
		robots:   cfg.Robots,
		observer: cfg.Observer,
		logger:   logger,
		policies: make(map[models.Platform]models.RateLimitPolicy, len(cfg.Policies)),
		gates:    make(map[models.Platform]chan struct{}),
	}
	for p, policy := range cfg.Policies {
		l.policies[p] = policy
	}
	if err := l.UpdateComplianceConfig(cfg.Compliance); err != nil {
		return nil, err
	}
	return l, nil
}

// Policy returns the platform's policy; false means the platform is unsupported.
func (l *Limiter) Policy(p models.Platform) (models.RateLimitPolicy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	policy, ok := l.policies[p]
	return policy, ok
}

// Policies returns a copy of every configured policy.
func (l *Limiter) Policies() map[models.Platform]models.RateLimitPolicy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[models.Platform]models.RateLimitPolicy, len(l.policies))
	for p, policy := range l.policies {
		out[p] = policy
	}
	return out
}

// UpdatePolicy replaces a platform's policy (admin action).
func (l *Limiter) UpdatePolicy(p models.Platform, policy models.RateLimitPolicy) error {
	if _, ok := models.ParsePlatform(string(p)); !ok {
		return fmt.Errorf("unknown platform: %s", p)
	}
	if err := ValidatePolicy(policy); err != nil {
		return err
	}

	l.mu.Lock()
	l.policies[p] = policy
	l.mu.Unlock()

	l.logger.Info("rate limit policy updated", "platform", p, "policy", policy)
	return nil
}

// ComplianceConfig returns the global collaborator settings.
func (l *Limiter) ComplianceConfig() models.ComplianceConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cfg := l.config
	cfg.BlockedPathPatterns = append([]string(nil), l.config.BlockedPathPatterns...)
	return cfg
}

// UpdateComplianceConfig replaces the global settings (admin action).
func (l *Limiter) UpdateComplianceConfig(cfg models.ComplianceConfig) error {
	if cfg.UserAgent == "" {
		return fmt.Errorf("user agent is required")
	}
	if cfg.MaxRedirects < 0 || cfg.Timeout < 0 || cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("redirect limit, timeout and retries must be non-negative")
	}

	blocked := make([]*regexp.Regexp, 0, len(cfg.BlockedPathPatterns))
	for _, pattern := range cfg.BlockedPathPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid blocked path pattern %q: %w", pattern, err)
		}
		blocked = append(blocked, re)
	}

	l.mu.Lock()
	l.config = cfg
	l.config.BlockedPathPatterns = append([]string(nil), cfg.BlockedPathPatterns...)
	l.blocked = blocked
	l.mu.Unlock()
	return nil
}

// IsRateLimited reports whether a request for p would exceed a quota now.
// Unsupported platforms are never limited.
func (l *Limiter) IsRateLimited(ctx context.Context, p models.Platform) (bool, error) {
	wait, err := l.TimeUntilNextRequest(ctx, p)
	if err != nil {
		return false, err
	}
	return wait > 0, nil
}

// TimeUntilNextRequest returns how long until every violated constraint has
// cleared; zero when a request may proceed now.
func (l *Limiter) TimeUntilNextRequest(ctx context.Context, p models.Platform) (time.Duration, error) {
	policy, ok := l.Policy(p)
	if !ok {
		return 0, nil
	}
	state, err := l.store.Get(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("load rate limit state: %w", err)
	}
	return waitFor(state, policy, l.clock.Now()), nil
}

// WaitForPermission blocks until a request for p is allowed, then records it.
// Callers for the same platform pass one at a time; a caller deadline is
// expressed through ctx.
func (l *Limiter) WaitForPermission(ctx context.Context, p models.Platform) error {
	policy, ok := l.Policy(p)
	if !ok {
		return nil
	}

	gate := l.gate(p)
	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-gate }()

	start := l.clock.Now()
	for {
		state, err := l.store.Get(ctx, p)
		if err != nil {
			return fmt.Errorf("load rate limit state: %w", err)
		}

		now := l.clock.Now()
		wait := waitFor(state, policy, now)
		if wait <= 0 {
			record(&state, now, policy)
			if err := l.store.Set(ctx, p, state); err != nil {
				return fmt.Errorf("save rate limit state: %w", err)
			}
			if l.observer != nil {
				l.observer.ObservePermit(p, now.Sub(start))
			}
			return nil
		}

		l.logger.Debug("waiting for rate limit", "platform", p, "wait", wait)
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		// Policies may change while we sleep.
		if policy, ok = l.Policy(p); !ok {
			return nil
		}
	}
}

// ValidateRequest runs the policy checks that do not depend on quota. It
// never reads or writes request state.
func (l *Limiter) ValidateRequest(ctx context.Context, p models.Platform, rawURL string) models.ComplianceValidation {
	result := l.validate(ctx, p, rawURL)
	if !result.IsValid && l.observer != nil {
		l.observer.ObserveRejection(p, "policy")
	}
	return result
}

func (l *Limiter) validate(ctx context.Context, p models.Platform, rawURL string) models.ComplianceValidation {
	policy, ok := l.Policy(p)
	if !ok {
		return invalid(fmt.Sprintf("no compliance policy for platform %q", p))
	}
	if rawURL == "" {
		return invalid("url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("malformed url: must be an absolute http(s) url")
	}
	if u.User != nil {
		return invalid("urls with embedded credentials are not allowed")
	}
	if !detector.MatchesPlatform(p, rawURL) {
		return invalid(fmt.Sprintf("url host %q does not belong to platform %s", u.Hostname(), p))
	}

	l.mu.RLock()
	blocked := l.blocked
	userAgent := l.config.UserAgent
	l.mu.RUnlock()

	for _, re := range blocked {
		if re.MatchString(u.Path) {
			return invalid(fmt.Sprintf("path %q is blocked by compliance policy", u.Path))
		}
	}

	if policy.RespectRobotsTxt && l.robots != nil {
		allowed, err := l.robots.Allowed(ctx, rawURL, userAgent)
		if err != nil {
			// Unreachable robots.txt does not block the request.
			l.logger.Warn("robots.txt check failed", "platform", p, "url", rawURL, "error", err)
		} else if !allowed {
			return invalid("disallowed by robots.txt")
		}
	}

	return models.ComplianceValidation{IsValid: true}
}

// RequestStats summarizes the stored request log for p.
func (l *Limiter) RequestStats(ctx context.Context, p models.Platform) (models.RequestStats, error) {
	if _, ok := l.Policy(p); !ok {
		return models.RequestStats{}, nil
	}
	state, err := l.store.Get(ctx, p)
	if err != nil {
		return models.RequestStats{}, fmt.Errorf("load rate limit state: %w", err)
	}

	now := l.clock.Now()
	stats := models.RequestStats{
		TotalRequests:      len(state.Timestamps),
		RequestsLastHour:   state.CountSince(now.Add(-time.Hour)),
		RequestsLastMinute: state.CountSince(now.Add(-time.Minute)),
	}
	if n := len(state.Timestamps); n > 1 {
		span := state.Timestamps[n-1].Sub(state.Timestamps[0])
		stats.AverageInterval = span / time.Duration(n-1)
	}
	return stats, nil
}

// ResetRateLimit clears the request log for p (admin action).
func (l *Limiter) ResetRateLimit(ctx context.Context, p models.Platform) error {
	if err := l.store.Delete(ctx, p); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	l.logger.Info("rate limit reset", "platform", p)
	return nil
}

// Sweep prunes request history older than a day from the store.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	return l.store.Sweep(ctx, l.clock.Now().Add(-24*time.Hour))
}

func (l *Limiter) gate(p models.Platform) chan struct{} {
	l.gatesMu.Lock()
	defer l.gatesMu.Unlock()

	g, ok := l.gates[p]
	if !ok {
		g = make(chan struct{}, 1)
		l.gates[p] = g
	}
	return g
}

// constraint is one trailing window and the number of requests it admits.
type constraint struct {
	window time.Duration
	limit  int
}

func constraints(policy models.RateLimitPolicy) []constraint {
	cs := make([]constraint, 0, 4)
	if policy.RequestsPerMinute > 0 {
		cs = append(cs, constraint{window: time.Minute, limit: policy.RequestsPerMinute})
	}
	if policy.RequestsPerHour > 0 {
		cs = append(cs, constraint{window: time.Hour, limit: policy.RequestsPerHour})
	}
	if policy.RequestsPerDay > 0 {
		cs = append(cs, constraint{window: 24 * time.Hour, limit: policy.RequestsPerDay})
	}
	if policy.CooldownPeriod > 0 {
		// The cooldown starts once BurstLimit requests have landed inside it;
		// without a burst allowance every request starts a cooldown.
		burst := policy.BurstLimit
		if burst < 1 {
			burst = 1
		}
		cs = append(cs, constraint{window: policy.CooldownPeriod, limit: burst})
	}
	return cs
}

// waitFor returns the time until every violated constraint clears.
func waitFor(state models.RateLimitState, policy models.RateLimitPolicy, now time.Time) time.Duration {
	var wait time.Duration
	n := len(state.Timestamps)
	for _, c := range constraints(policy) {
		count := state.CountSince(now.Add(-c.window))
		if count < c.limit {
			continue
		}
		// Timestamps are ascending, so the in-window requests are the last
		// count entries. The constraint clears once count-limit+1 of them
		// have aged out.
		oldest := state.Timestamps[n-c.limit]
		if d := oldest.Add(c.window).Sub(now); d > wait {
			wait = d
		}
	}
	return wait
}

func record(state *models.RateLimitState, now time.Time, policy models.RateLimitPolicy) {
	ts := now
	if n := len(state.Timestamps); n > 0 && ts.Before(state.Timestamps[n-1]) {
		ts = state.Timestamps[n-1]
	}
	state.Timestamps = append(state.Timestamps, ts)
	state.LastRequest = ts

	keep := policy.LongestWindow()
	if keep < statsWindow {
		keep = statsWindow
	}
	state.Prune(now.Add(-keep))
}

func invalid(reason string) models.ComplianceValidation {
	return models.ComplianceValidation{IsValid: false, Reason: reason}
}
