package models

import "time"

// SocialMediaMetadata is the canonical envelope describing a social post a
// recipe came from.
type SocialMediaMetadata struct {
	Platform         Platform          `json:"platform"`
	ContentID        string            `json:"contentId"`
	URL              string            `json:"url"`
	Author           AuthorInfo        `json:"author"`
	Engagement       Engagement        `json:"engagement"`
	Timestamps       ContentTimestamps `json:"timestamps"`
	Tags             []string          `json:"tags"`
	PlatformSpecific map[string]any    `json:"platformSpecific"`
	Privacy          PrivacyInfo       `json:"privacy"`
	Categories       []string          `json:"categories"`
	ContentQuality   *ContentQuality   `json:"contentQuality,omitempty"`
}

// AuthorInfo identifies who published the content.
type AuthorInfo struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	ProfileURL  string `json:"profileUrl,omitempty"`
	Verified    bool   `json:"verified"`
}

// Engagement holds interaction counters at scrape time.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Views    int64 `json:"views"`
	Saves    int64 `json:"saves"`
}

// Total sums every interaction except views.
func (e Engagement) Total() int64 {
	return e.Likes + e.Comments + e.Shares + e.Saves
}

// ContentTimestamps records when content was published and scraped.
type ContentTimestamps struct {
	Published *time.Time `json:"published,omitempty"`
	Scraped   time.Time  `json:"scraped"`
}

// Visibility values for PrivacyInfo.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilityUnknown = "unknown"
)

// PrivacyInfo describes how the content may be accessed.
type PrivacyInfo struct {
	Visibility     string `json:"visibility"`
	AllowsDownload bool   `json:"allowsDownload"`
}

// Quality tiers.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// ContentQuality scores a post on a 0-100 scale.
type ContentQuality struct {
	Score int    `json:"score"`
	Tier  string `json:"tier"`
}

// MetadataValidation is the result of validating an envelope.
type MetadataValidation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// MetadataSummary is a compact projection of an envelope.
type MetadataSummary struct {
	Platform        Platform `json:"platform"`
	ContentID       string   `json:"contentId"`
	AuthorHandle    string   `json:"authorHandle"`
	TotalEngagement int64    `json:"totalEngagement"`
	QualityTier     string   `json:"qualityTier"`
	AgeDays         int      `json:"ageDays"`
}
