package models

import "time"

// CanonicalRecipe is the normalized recipe record returned for every platform.
// Ingredients, Instructions and Images are never nil.
type CanonicalRecipe struct {
	Title            string         `json:"title"`
	Ingredients      []string       `json:"ingredients"`
	Instructions     []string       `json:"instructions"`
	CookingTime      *int           `json:"cookingTime,omitempty"` // minutes
	Servings         *int           `json:"servings,omitempty"`
	Images           []string       `json:"images"`
	SourceURL        string         `json:"sourceUrl"`
	ExtractedAt      time.Time      `json:"extractedAt"`
	PlatformMetadata map[string]any `json:"platformMetadata,omitempty"`
}

// NewCanonicalRecipe returns a recipe with all list fields initialized.
func NewCanonicalRecipe(sourceURL string, extractedAt time.Time) *CanonicalRecipe {
	return &CanonicalRecipe{
		Ingredients:      []string{},
		Instructions:     []string{},
		Images:           []string{},
		SourceURL:        sourceURL,
		ExtractedAt:      extractedAt,
		PlatformMetadata: map[string]any{},
	}
}

// IsEmpty reports whether nothing usable was extracted.
func (r *CanonicalRecipe) IsEmpty() bool {
	return r.Title == "" && len(r.Ingredients) == 0 && len(r.Instructions) == 0
}
