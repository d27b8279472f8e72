package models

import "strings"

// Platform identifies the source a recipe is extracted from.
type Platform string

const (
	PlatformInstagram  Platform = "instagram"
	PlatformTikTok     Platform = "tiktok"
	PlatformPinterest  Platform = "pinterest"
	PlatformFacebook   Platform = "facebook"
	PlatformTwitter    Platform = "twitter"
	PlatformYouTube    Platform = "youtube"
	PlatformWhatsApp   Platform = "whatsapp"
	PlatformEmail      Platform = "email"
	PlatformFoodBlog   Platform = "foodblog"
	PlatformAppleNotes Platform = "appleNotes"
	PlatformEvernote   Platform = "evernote"
	PlatformImageOCR   Platform = "imageOcr"
)

// AllPlatforms lists every known platform in declaration order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformInstagram,
		PlatformTikTok,
		PlatformPinterest,
		PlatformFacebook,
		PlatformTwitter,
		PlatformYouTube,
		PlatformWhatsApp,
		PlatformEmail,
		PlatformFoodBlog,
		PlatformAppleNotes,
		PlatformEvernote,
		PlatformImageOCR,
	}
}

// ParsePlatform resolves a platform name case-insensitively.
func ParsePlatform(raw string) (Platform, bool) {
	raw = strings.TrimSpace(raw)
	for _, p := range AllPlatforms() {
		if strings.EqualFold(raw, string(p)) {
			return p, true
		}
	}
	return "", false
}

// IsSocial reports whether the platform is a social network whose posts carry
// engagement metadata.
func (p Platform) IsSocial() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformPinterest,
		PlatformFacebook, PlatformTwitter, PlatformYouTube:
		return true
	}
	return false
}

// IsURLBased reports whether extraction for the platform starts from a URL and
// goes through a closeable scraper collaborator.
func (p Platform) IsURLBased() bool {
	return p.IsSocial() || p == PlatformFoodBlog
}

// IsTextBased reports whether extraction starts from pasted text.
func (p Platform) IsTextBased() bool {
	return p == PlatformEmail || p == PlatformWhatsApp
}

func (p Platform) String() string {
	return string(p)
}
