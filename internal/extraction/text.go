package extraction

import (
	"context"
	"slices"
	"strings"

	"github.com/mealvault/mealvault/internal/models"
)

// ExtractText runs pasted text through the platform's text scraper. Text
// platforms share the quota gate but skip URL validation.
func (d *Dispatcher) ExtractText(ctx context.Context, platform models.Platform, text string, meta map[string]string) (*Result, error) {
	start := d.clock.Now()
	res, err := d.extractText(ctx, platform, text, meta)
	d.observe(platform, err, start)
	return res, err
}

func (d *Dispatcher) extractText(ctx context.Context, platform models.Platform, text string, meta map[string]string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindInvalidInput, "text is required")
	}
	scraper, ok := d.registry.Text(platform)
	if !ok {
		return nil, newError(KindUnsupportedPlatform, "no text scraper for platform %q", platform)
	}
	if err := d.pass(ctx, platform); err != nil {
		return nil, err
	}

	payload, err := scraper.ScrapeText(ctx, text, meta)
	if err != nil {
		classified := Classify(err)
		d.recordFailure(ctx, platform, meta["sourceUrl"], meta["jobId"], classified)
		return nil, classified
	}

	recipe := toRecipe(payload, meta["sourceUrl"], d.clock.Now().UTC())
	if recipe.IsEmpty() {
		return nil, newError(KindInsufficientData, "no recipe found in %s text", platform)
	}
	return &Result{Recipe: recipe, Platform: platform}, nil
}

// ExtractImage recognizes text in an image and parses a recipe from it.
func (d *Dispatcher) ExtractImage(ctx context.Context, image []byte, opts OCROptions) (*Result, error) {
	start := d.clock.Now()
	res, err := d.extractImage(ctx, image, opts)
	d.observe(models.PlatformImageOCR, err, start)
	return res, err
}

func (d *Dispatcher) extractImage(ctx context.Context, image []byte, opts OCROptions) (*Result, error) {
	if len(image) == 0 {
		return nil, newError(KindInvalidInput, "image is required")
	}
	if d.ocr == nil {
		return nil, newError(KindUnsupportedPlatform, "image text recognition is not configured")
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if !slices.Contains(d.ocr.SupportedLanguages(), opts.Language) {
		return nil, newError(KindInvalidInput, "unsupported language %q", opts.Language)
	}
	if opts.ConfidenceThreshold < 0 || opts.ConfidenceThreshold > 100 {
		return nil, newError(KindInvalidInput, "confidence threshold must be between 0 and 100")
	}
	if err := d.pass(ctx, models.PlatformImageOCR); err != nil {
		return nil, err
	}

	ocr, err := d.ocr.ExtractText(ctx, image, opts)
	if err != nil {
		classified := Classify(err)
		d.recordFailure(ctx, models.PlatformImageOCR, "", "", classified)
		return nil, classified
	}
	if strings.TrimSpace(ocr.Text) == "" {
		return nil, newError(KindInsufficientData, "no text recognized in image")
	}
	if ocr.Confidence < opts.ConfidenceThreshold {
		return nil, newError(KindInsufficientData, "recognition confidence %.0f below threshold %.0f", ocr.Confidence, opts.ConfidenceThreshold)
	}

	recipe := toRecipe(ParseRecipeText(ocr.Text), "", d.clock.Now().UTC())
	if recipe.IsEmpty() {
		return nil, newError(KindInsufficientData, "no recipe found in recognized text")
	}
	recipe.PlatformMetadata["ocrConfidence"] = ocr.Confidence
	recipe.PlatformMetadata["ocrLanguage"] = ocr.Language
	recipe.PlatformMetadata["processingTimeMs"] = ocr.ProcessingTimeMs
	recipe.PlatformMetadata["rawText"] = ocr.Text
	return &Result{Recipe: recipe, Platform: models.PlatformImageOCR}, nil
}

// pass applies the quota gates for inputs that have no URL to validate.
func (d *Dispatcher) pass(ctx context.Context, platform models.Platform) error {
	if _, ok := d.gate.Policy(platform); !ok {
		return newError(KindUnsupportedPlatform, "no compliance policy for platform %q", platform)
	}
	if err := d.admit(ctx, platform); err != nil {
		return err
	}
	if err := d.gate.WaitForPermission(ctx, platform); err != nil {
		return Classify(err)
	}
	return nil
}
