// Package metadata builds the canonical envelope describing the social post a
// recipe came from, and merges fresh scrapes into previously stored envelopes.
package metadata

import (
	"math"
	"net/url"
	"time"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/models"
)

// DefaultMaxAge is how long an envelope stays fresh.
const DefaultMaxAge = 7 * 24 * time.Hour

// Normalizer maps raw collaborator payloads into SocialMediaMetadata.
type Normalizer struct {
	maxAge time.Duration
	clock  clock.Clock
}

// NewNormalizer creates a normalizer. A non-positive maxAge uses DefaultMaxAge.
func NewNormalizer(maxAge time.Duration, clk clock.Clock) *Normalizer {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Normalizer{maxAge: maxAge, clock: clk}
}

// MaxAge returns the freshness window.
func (n *Normalizer) MaxAge() time.Duration {
	return n.maxAge
}

// Create builds an envelope. contentID and rawURL win over values found in
// raw; missing fields default to neutral values.
func (n *Normalizer) Create(platform models.Platform, contentID, rawURL string, raw map[string]any) *models.SocialMediaMetadata {
	m := &models.SocialMediaMetadata{
		Platform:         platform,
		Tags:             []string{},
		Categories:       []string{},
		PlatformSpecific: map[string]any{},
		Privacy:          models.PrivacyInfo{Visibility: models.VisibilityUnknown},
	}

	p := parse(platform, raw)
	if contentID != "" {
		p.identity.ContentID = &contentID
	}
	if rawURL != "" {
		p.identity.URL = &rawURL
	}
	merge(m, p)

	m.Timestamps.Scraped = n.clock.Now().UTC()
	m.ContentQuality = score(m, keepCaption(m, p.content.Caption))
	return m
}

// Update merges a fresh payload over existing and returns the result; existing
// is not modified. Fields the payload lacks keep their stored values.
func (n *Normalizer) Update(existing *models.SocialMediaMetadata, raw map[string]any) *models.SocialMediaMetadata {
	m := clone(existing)
	p := parse(m.Platform, raw)
	merge(m, p)

	m.Timestamps.Scraped = n.clock.Now().UTC()
	m.ContentQuality = score(m, keepCaption(m, p.content.Caption))
	return m
}

// captionKey holds the last seen caption in PlatformSpecific so refreshes
// without one still score it.
const captionKey = "caption"

func keepCaption(m *models.SocialMediaMetadata, fresh *string) *string {
	if fresh != nil {
		m.PlatformSpecific[captionKey] = *fresh
		return fresh
	}
	if s, ok := m.PlatformSpecific[captionKey].(string); ok {
		return &s
	}
	return nil
}

// Validate reports missing identity fields as errors and missing soft fields
// as warnings.
func (n *Normalizer) Validate(m *models.SocialMediaMetadata) models.MetadataValidation {
	result := models.MetadataValidation{Errors: []string{}, Warnings: []string{}}
	if m == nil {
		result.Errors = append(result.Errors, "metadata is missing")
		return result
	}

	if m.Platform == "" {
		result.Errors = append(result.Errors, "platform is required")
	} else if _, ok := models.ParsePlatform(string(m.Platform)); !ok {
		result.Errors = append(result.Errors, "platform is not recognized: "+string(m.Platform))
	}
	if m.ContentID == "" {
		result.Errors = append(result.Errors, "contentId is required")
	}
	if m.URL == "" {
		result.Errors = append(result.Errors, "url is required")
	} else if u, err := url.Parse(m.URL); err != nil || u.Scheme == "" || u.Host == "" {
		result.Errors = append(result.Errors, "url is not an absolute url")
	}

	if len(m.Tags) == 0 {
		result.Warnings = append(result.Warnings, "no tags present")
	}
	if m.Author.Handle == "" {
		result.Warnings = append(result.Warnings, "author handle is missing")
	}
	e := m.Engagement
	if e.Likes < 0 || e.Comments < 0 || e.Shares < 0 || e.Views < 0 || e.Saves < 0 {
		result.Warnings = append(result.Warnings, "engagement counters contain negative values")
	}
	if pub := m.Timestamps.Published; pub != nil && pub.After(n.clock.Now()) {
		result.Warnings = append(result.Warnings, "published time is in the future")
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// Summary projects an envelope into its compact form. Age counts from the
// publish time when known, else from the scrape time.
func (n *Normalizer) Summary(m *models.SocialMediaMetadata) models.MetadataSummary {
	since := m.Timestamps.Scraped
	if m.Timestamps.Published != nil {
		since = *m.Timestamps.Published
	}
	age := n.clock.Now().Sub(since)
	if age < 0 {
		age = 0
	}

	tier := models.QualityLow
	if m.ContentQuality != nil {
		tier = m.ContentQuality.Tier
	}
	return models.MetadataSummary{
		Platform:        m.Platform,
		ContentID:       m.ContentID,
		AuthorHandle:    m.Author.Handle,
		TotalEngagement: m.Engagement.Total(),
		QualityTier:     tier,
		AgeDays:         int(age / (24 * time.Hour)),
	}
}

// IsExpired reports whether the envelope was scraped longer than MaxAge ago.
func (n *Normalizer) IsExpired(m *models.SocialMediaMetadata) bool {
	return n.clock.Now().Sub(m.Timestamps.Scraped) > n.maxAge
}

// score rates content 0-100 from engagement, author signals and completeness.
func score(m *models.SocialMediaMetadata, caption *string) *models.ContentQuality {
	s := 0.0
	if total := m.Engagement.Total(); total > 0 {
		// 10 interactions ≈ 10 points, 10k ≈ 40 points.
		s += math.Min(40, 10*math.Log10(float64(total)))
	}
	if m.Engagement.Views > 0 {
		s += math.Min(10, 2*math.Log10(float64(m.Engagement.Views)))
	}
	if m.Author.Verified {
		s += 10
	}
	if m.Author.Handle != "" {
		s += 5
	}
	if len(m.Tags) > 0 {
		s += 10
	}
	if m.Timestamps.Published != nil {
		s += 5
	}
	if caption != nil && len(*caption) >= 80 {
		s += 15
	} else if caption != nil {
		s += 5
	}
	if m.Privacy.Visibility == models.VisibilityPublic {
		s += 5
	}

	points := int(math.Round(math.Min(100, s)))
	tier := models.QualityLow
	switch {
	case points >= 60:
		tier = models.QualityHigh
	case points >= 30:
		tier = models.QualityMedium
	}
	return &models.ContentQuality{Score: points, Tier: tier}
}

func clone(m *models.SocialMediaMetadata) *models.SocialMediaMetadata {
	cp := *m
	cp.Tags = append([]string{}, m.Tags...)
	cp.Categories = append([]string{}, m.Categories...)
	cp.PlatformSpecific = make(map[string]any, len(m.PlatformSpecific))
	for k, v := range m.PlatformSpecific {
		cp.PlatformSpecific[k] = v
	}
	if m.Timestamps.Published != nil {
		t := *m.Timestamps.Published
		cp.Timestamps.Published = &t
	}
	if m.ContentQuality != nil {
		q := *m.ContentQuality
		cp.ContentQuality = &q
	}
	return &cp
}
