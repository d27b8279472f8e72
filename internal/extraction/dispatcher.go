// Package extraction turns a URL, pasted text or an image into a canonical
// recipe by way of the compliance gate and a platform collaborator.
package extraction

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/detector"
	"github.com/mealvault/mealvault/internal/metadata"
	"github.com/mealvault/mealvault/internal/models"
)

// Gate is the compliance surface the dispatcher needs. *compliance.Limiter
// implements it.
type Gate interface {
	Policy(p models.Platform) (models.RateLimitPolicy, bool)
	IsRateLimited(ctx context.Context, p models.Platform) (bool, error)
	TimeUntilNextRequest(ctx context.Context, p models.Platform) (time.Duration, error)
	ValidateRequest(ctx context.Context, p models.Platform, rawURL string) models.ComplianceValidation
	WaitForPermission(ctx context.Context, p models.Platform) error
	ComplianceConfig() models.ComplianceConfig
}

// MetadataStore keeps the latest envelope per post. Get returns nil, nil when
// nothing is stored.
type MetadataStore interface {
	Get(ctx context.Context, p models.Platform, contentID string) (*models.SocialMediaMetadata, error)
	Put(ctx context.Context, m *models.SocialMediaMetadata) error
}

// FailureRecorder persists classified collaborator failures.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, f *models.ExtractionFailure) error
}

// Observer receives extraction outcomes; the metrics package implements it.
type Observer interface {
	ObserveExtraction(p models.Platform, outcome string, d time.Duration)
}

// Result is a successful extraction.
type Result struct {
	Recipe   *models.CanonicalRecipe     `json:"recipe"`
	Metadata *models.SocialMediaMetadata `json:"metadata,omitempty"`
	Platform models.Platform             `json:"platform"`
}

// Config wires a Dispatcher. Registry, Gate and Normalizer are required.
type Config struct {
	Registry   *Registry
	Gate       Gate
	Normalizer *metadata.Normalizer
	Metadata   MetadataStore
	Failures   FailureRecorder
	Observer   Observer
	OCR        ImageTextEngine
	Clock      clock.Clock
}

// Dispatcher runs extractions.
type Dispatcher struct {
	registry   *Registry
	gate       Gate
	normalizer *metadata.Normalizer
	metadata   MetadataStore
	failures   FailureRecorder
	observer   Observer
	ocr        ImageTextEngine
	clock      clock.Clock
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = metadata.NewNormalizer(0, cfg.Clock)
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		gate:       cfg.Gate,
		normalizer: cfg.Normalizer,
		metadata:   cfg.Metadata,
		failures:   cfg.Failures,
		observer:   cfg.Observer,
		ocr:        cfg.OCR,
		clock:      cfg.Clock,
		logger:     logger,
	}
}

// Extract runs a URL through detection, the compliance gate and the platform
// scraper. An empty platform is detected from the URL. Every stage fails fast
// with a classified *Error.
func (d *Dispatcher) Extract(ctx context.Context, rawURL string, platform models.Platform, opts Options) (*Result, error) {
	start := d.clock.Now()
	res, err := d.extract(ctx, strings.TrimSpace(rawURL), platform, opts)
	d.observe(platformOf(res, platform, rawURL), err, start)
	return res, err
}

func (d *Dispatcher) extract(ctx context.Context, rawURL string, platform models.Platform, opts Options) (*Result, error) {
	if rawURL == "" {
		return nil, newError(KindInvalidInput, "url is required")
	}

	if platform == "" {
		detected, ok := detector.Detect(rawURL)
		if !ok {
			return nil, newError(KindUnsupportedPlatform, "no supported platform matches %q", rawURL)
		}
		platform = detected
	}
	factory, ok := d.registry.Factory(platform)
	if !ok {
		return nil, newError(KindUnsupportedPlatform, "no scraper for platform %q", platform)
	}
	if _, ok := d.gate.Policy(platform); !ok {
		return nil, newError(KindUnsupportedPlatform, "no compliance policy for platform %q", platform)
	}

	if err := d.admit(ctx, platform); err != nil {
		return nil, err
	}

	validation := d.gate.ValidateRequest(ctx, platform, rawURL)
	if !validation.IsValid {
		return nil, newError(KindPolicyViolation, "%s", validation.Reason)
	}

	if err := d.gate.WaitForPermission(ctx, platform); err != nil {
		return nil, Classify(err)
	}

	payload, err := d.scrape(ctx, factory, rawURL, d.withDefaults(opts))
	if err != nil {
		classified := Classify(err)
		d.recordFailure(ctx, platform, rawURL, opts.JobID, classified)
		return nil, classified
	}

	recipe := toRecipe(payload, rawURL, d.clock.Now().UTC())
	if recipe.IsEmpty() {
		e := newError(KindInsufficientData, "no recipe content found at %s", rawURL)
		d.recordFailure(ctx, platform, rawURL, opts.JobID, e)
		return nil, e
	}

	res := &Result{Recipe: recipe, Platform: platform}
	if platform.IsSocial() {
		res.Metadata = d.socialMetadata(ctx, platform, rawURL, payload)
		recipe.PlatformMetadata["contentId"] = res.Metadata.ContentID
		recipe.PlatformMetadata["author"] = res.Metadata.Author.Handle
	}
	return res, nil
}

// scrape acquires a fresh scraper and closes it on every path.
func (d *Dispatcher) scrape(ctx context.Context, factory ScraperFactory, rawURL string, opts Options) (Payload, error) {
	scraper, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scraper.Close(); err != nil {
			d.logger.Warn("failed to close scraper", "url", rawURL, "error", err)
		}
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	payload, err := scraper.Scrape(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, newError(KindInsufficientData, "scraper returned no content")
	}
	return payload, nil
}

// admit rejects the request when the platform is currently over quota.
func (d *Dispatcher) admit(ctx context.Context, platform models.Platform) error {
	limited, err := d.gate.IsRateLimited(ctx, platform)
	if err != nil {
		return Classify(err)
	}
	if !limited {
		return nil
	}
	wait, err := d.gate.TimeUntilNextRequest(ctx, platform)
	if err != nil {
		return Classify(err)
	}
	e := newError(KindRateLimited, "rate limit active for %s", platform)
	e.RetryAfter = wait
	return e
}

func (d *Dispatcher) withDefaults(opts Options) Options {
	cfg := d.gate.ComplianceConfig()
	if opts.UserAgent == "" {
		opts.UserAgent = cfg.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Timeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = cfg.MaxRedirects
	}
	return opts
}

// socialMetadata builds the envelope for a social post, merging over a stored
// envelope when one exists and has not expired.
func (d *Dispatcher) socialMetadata(ctx context.Context, platform models.Platform, rawURL string, payload Payload) *models.SocialMediaMetadata {
	raw, _ := payload["metadata"].(map[string]any)
	if raw == nil {
		raw = payload
	}
	contentID, _ := payload["contentId"].(string)
	if contentID == "" {
		contentID = detector.ContentID(platform, rawURL)
	}

	var m *models.SocialMediaMetadata
	if d.metadata != nil && contentID != "" {
		existing, err := d.metadata.Get(ctx, platform, contentID)
		if err != nil {
			d.logger.Warn("failed to load metadata", "platform", platform, "content_id", contentID, "error", err)
		}
		if existing != nil && !d.normalizer.IsExpired(existing) {
			m = d.normalizer.Update(existing, raw)
		}
	}
	if m == nil {
		m = d.normalizer.Create(platform, contentID, rawURL, raw)
	}

	if validation := d.normalizer.Validate(m); !validation.IsValid {
		d.logger.Warn("metadata failed validation", "platform", platform, "errors", validation.Errors)
	} else if d.metadata != nil {
		if err := d.metadata.Put(ctx, m); err != nil {
			d.logger.Warn("failed to store metadata", "platform", platform, "content_id", m.ContentID, "error", err)
		}
	}
	return m
}

func (d *Dispatcher) recordFailure(ctx context.Context, platform models.Platform, rawURL, jobID string, e *Error) {
	d.logger.Warn("extraction failed", "platform", platform, "url", rawURL, "kind", e.Kind, "error", e.Message)
	if d.failures == nil {
		return
	}
	f := &models.ExtractionFailure{
		ID:        uuid.New().String(),
		Platform:  string(platform),
		Kind:      string(e.Kind),
		URL:       rawURL,
		Message:   e.Message,
		JobID:     jobID,
		CreatedAt: d.clock.Now().UTC(),
	}
	// The caller may already be gone; the record should still land.
	if err := d.failures.RecordFailure(context.WithoutCancel(ctx), f); err != nil {
		d.logger.Error("failed to record extraction failure", "error", err)
	}
}

func (d *Dispatcher) observe(platform models.Platform, err error, start time.Time) {
	if d.observer == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}
	d.observer.ObserveExtraction(platform, outcome, d.clock.Now().Sub(start))
}

func platformOf(res *Result, given models.Platform, raw string) models.Platform {
	if res != nil {
		return res.Platform
	}
	if given != "" {
		return given
	}
	if p, ok := detector.Detect(raw); ok {
		return p
	}
	return "unknown"
}
