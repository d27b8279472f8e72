package metadata

import (
	"strings"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

// Each part carries only the fields a payload actually supplied; a nil
// pointer means absent and leaves the stored value untouched.

type identityPart struct {
	ContentID *string
	URL       *string
}

type authorPart struct {
	Handle      *string
	DisplayName *string
	ProfileURL  *string
	Verified    *bool
}

type engagementPart struct {
	Likes    *int64
	Comments *int64
	Shares   *int64
	Views    *int64
	Saves    *int64
}

type timestampsPart struct {
	Published *time.Time
}

type contentPart struct {
	Tags       []string // nil when absent
	Categories []string // nil when absent
	Caption    *string
}

type privacyPart struct {
	Visibility     *string
	AllowsDownload *bool
}

// partials is one payload decomposed into named parts.
type partials struct {
	identity   identityPart
	author     authorPart
	engagement engagementPart
	timestamps timestampsPart
	content    contentPart
	privacy    privacyPart
	specific   map[string]any
}

// parse applies the platform's field map to raw.
func parse(p models.Platform, raw map[string]any) partials {
	var out partials
	if raw == nil {
		return out
	}
	paths := func(pick func(fieldMap) []string) []string { return pathsFor(p, pick) }

	out.identity = identityPart{
		ContentID: firstString(raw, paths(func(f fieldMap) []string { return f.ContentID })),
		URL:       firstString(raw, paths(func(f fieldMap) []string { return f.URL })),
	}
	out.author = authorPart{
		Handle:      firstString(raw, paths(func(f fieldMap) []string { return f.Handle })),
		DisplayName: firstString(raw, paths(func(f fieldMap) []string { return f.DisplayName })),
		ProfileURL:  firstString(raw, paths(func(f fieldMap) []string { return f.ProfileURL })),
		Verified:    firstBool(raw, paths(func(f fieldMap) []string { return f.Verified })),
	}
	if out.author.Handle != nil {
		h := strings.TrimPrefix(*out.author.Handle, "@")
		out.author.Handle = &h
	}
	out.engagement = engagementPart{
		Likes:    firstInt(raw, paths(func(f fieldMap) []string { return f.Likes })),
		Comments: firstInt(raw, paths(func(f fieldMap) []string { return f.Comments })),
		Shares:   firstInt(raw, paths(func(f fieldMap) []string { return f.Shares })),
		Views:    firstInt(raw, paths(func(f fieldMap) []string { return f.Views })),
		Saves:    firstInt(raw, paths(func(f fieldMap) []string { return f.Saves })),
	}
	out.timestamps = timestampsPart{
		Published: firstTime(raw, paths(func(f fieldMap) []string { return f.Published })),
	}

	out.content = contentPart{
		Tags:       firstStrings(raw, paths(func(f fieldMap) []string { return f.Tags })),
		Categories: firstStrings(raw, paths(func(f fieldMap) []string { return f.Categories })),
		Caption:    firstString(raw, paths(func(f fieldMap) []string { return f.Caption })),
	}
	if out.content.Tags == nil && out.content.Caption != nil {
		if tags := hashtags(*out.content.Caption); len(tags) > 0 {
			out.content.Tags = tags
		}
	}

	out.privacy = privacyPart{
		Visibility:     firstString(raw, paths(func(f fieldMap) []string { return f.Visibility })),
		AllowsDownload: firstBool(raw, paths(func(f fieldMap) []string { return f.AllowsDownload })),
	}
	if out.privacy.Visibility != nil {
		v := normalizeVisibility(*out.privacy.Visibility)
		out.privacy.Visibility = &v
	} else if private := firstBool(raw, paths(func(f fieldMap) []string { return f.Private })); private != nil {
		v := models.VisibilityPublic
		if *private {
			v = models.VisibilityPrivate
		}
		out.privacy.Visibility = &v
	}

	out.specific = map[string]any{}
	for key, keyPaths := range platformFields[p].Specific {
		for _, path := range keyPaths {
			if v, ok := lookup(raw, path); ok {
				out.specific[key] = v
				break
			}
		}
	}
	return out
}

func normalizeVisibility(v string) string {
	switch strings.ToLower(v) {
	case "public", "everyone", "open":
		return models.VisibilityPublic
	case "private", "unlisted", "friends", "followers", "restricted":
		return models.VisibilityPrivate
	}
	return models.VisibilityUnknown
}

// merge applies parts to m in a fixed order. Within a part, a present field in
// the payload always replaces the stored one; an absent field never does.
func merge(m *models.SocialMediaMetadata, p partials) {
	mergeIdentity(m, p.identity)
	mergeAuthor(&m.Author, p.author)
	mergeEngagement(&m.Engagement, p.engagement)
	mergeTimestamps(&m.Timestamps, p.timestamps)
	mergeContent(m, p.content)
	mergePrivacy(&m.Privacy, p.privacy)
	mergeSpecific(m, p.specific)
}

func mergeIdentity(m *models.SocialMediaMetadata, p identityPart) {
	setString(&m.ContentID, p.ContentID)
	setString(&m.URL, p.URL)
}

func mergeAuthor(a *models.AuthorInfo, p authorPart) {
	setString(&a.Handle, p.Handle)
	setString(&a.DisplayName, p.DisplayName)
	setString(&a.ProfileURL, p.ProfileURL)
	if p.Verified != nil {
		a.Verified = *p.Verified
	}
}

func mergeEngagement(e *models.Engagement, p engagementPart) {
	setInt(&e.Likes, p.Likes)
	setInt(&e.Comments, p.Comments)
	setInt(&e.Shares, p.Shares)
	setInt(&e.Views, p.Views)
	setInt(&e.Saves, p.Saves)
}

func mergeTimestamps(t *models.ContentTimestamps, p timestampsPart) {
	if p.Published != nil {
		pub := *p.Published
		t.Published = &pub
	}
}

func mergeContent(m *models.SocialMediaMetadata, p contentPart) {
	if p.Tags != nil {
		m.Tags = append([]string{}, p.Tags...)
	}
	if p.Categories != nil {
		m.Categories = append([]string{}, p.Categories...)
	}
}

func mergePrivacy(pr *models.PrivacyInfo, p privacyPart) {
	setString(&pr.Visibility, p.Visibility)
	if p.AllowsDownload != nil {
		pr.AllowsDownload = *p.AllowsDownload
	}
}

func mergeSpecific(m *models.SocialMediaMetadata, specific map[string]any) {
	if m.PlatformSpecific == nil {
		m.PlatformSpecific = map[string]any{}
	}
	for k, v := range specific {
		m.PlatformSpecific[k] = v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
