package extraction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

// Payload is the collaborator-specific result shape. Keys vary by
// collaborator; the dispatcher maps known aliases into a CanonicalRecipe.
type Payload map[string]any

// Options are passed through to a scraper for one call. Zero values are
// filled from the global compliance config.
type Options struct {
	UserAgent       string        `json:"userAgent,omitempty"`
	Timeout         time.Duration `json:"-"`
	MaxRedirects    int           `json:"maxRedirects,omitempty"`
	IncludeComments bool          `json:"includeComments,omitempty"`
	Language        string        `json:"language,omitempty"`

	// JobID links failures to the import job that caused them.
	JobID string `json:"-"`
}

// Scraper extracts a recipe from one platform. Instances are single-use:
// the dispatcher obtains a fresh one per call and always closes it.
type Scraper interface {
	Scrape(ctx context.Context, url string, opts Options) (Payload, error)
	Close() error
}

// ScraperFactory constructs a fresh scraper.
type ScraperFactory func(ctx context.Context) (Scraper, error)

// TextScraper extracts a recipe from pasted text. Implementations are
// stateless and shared.
type TextScraper interface {
	ScrapeText(ctx context.Context, text string, meta map[string]string) (Payload, error)
}

// OCROptions tune text recognition.
type OCROptions struct {
	Language            string  `json:"language"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"` // 0-100
	Grayscale           bool    `json:"grayscale"`
	EnhanceContrast     bool    `json:"enhanceContrast"`
	Deskew              bool    `json:"deskew"`
}

// OCRResult is the recognized text of one image.
type OCRResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"` // 0-100
	ProcessingTimeMs int64   `json:"processingTimeMs"`
	Language         string  `json:"language"`
}

// ImageTextEngine recognizes text in images.
type ImageTextEngine interface {
	ExtractText(ctx context.Context, image []byte, opts OCROptions) (*OCRResult, error)
	SupportedLanguages() []string
}

// Registry maps platforms to their collaborators.
type Registry struct {
	mu        sync.RWMutex
	factories map[models.Platform]ScraperFactory
	text      map[models.Platform]TextScraper
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[models.Platform]ScraperFactory),
		text:      make(map[models.Platform]TextScraper),
	}
}

// Register installs the scraper factory for a URL-based platform.
func (r *Registry) Register(p models.Platform, f ScraperFactory) error {
	if !p.IsURLBased() {
		return fmt.Errorf("platform %s does not take url scrapers", p)
	}
	r.mu.Lock()
	r.factories[p] = f
	r.mu.Unlock()
	return nil
}

// RegisterText installs the text scraper for a text-based platform.
func (r *Registry) RegisterText(p models.Platform, s TextScraper) error {
	if !p.IsTextBased() {
		return fmt.Errorf("platform %s does not take text scrapers", p)
	}
	r.mu.Lock()
	r.text[p] = s
	r.mu.Unlock()
	return nil
}

// Factory returns the scraper factory for p.
func (r *Registry) Factory(p models.Platform) (ScraperFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[p]
	return f, ok
}

// Text returns the text scraper for p.
func (r *Registry) Text(p models.Platform) (TextScraper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.text[p]
	return s, ok
}

// Platforms lists every platform with a registered collaborator.
func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Platform, 0, len(r.factories)+len(r.text))
	for p := range r.factories {
		out = append(out, p)
	}
	for p := range r.text {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
