// Package detector maps URLs and pasted text to the platform they came from.
package detector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mealvault/mealvault/internal/models"
)

// input is the pre-parsed form handed to every rule.
type input struct {
	raw   string
	lower string
	url   *url.URL // nil when the input is not an absolute http(s) URL
	host  string
}

// Rule pairs a matcher with the platform it identifies.
type Rule struct {
	Name     string
	Platform models.Platform
	match    func(in input) bool
}

var (
	whatsAppLine  = regexp.MustCompile(`(?m)^\[?\d{1,2}[/.]\d{1,2}[/.]\d{2,4},? \d{1,2}:\d{2}(:\d{2})?(\s?[AaPp][Mm])?\]? ?(- )?[^:\n]{1,60}: `)
	emailHeaders  = regexp.MustCompile(`(?im)^(from|to|subject|date):\s+\S`)
	imageSuffix   = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|heic|heif|bmp|tiff?)$`)
	genericRecipe = regexp.MustCompile(`(?i)(recipe|cook|food|meal|dish)`)
	// pinterest.com plus its country domains (pinterest.de, pinterest.co.uk, pinterest.com.au).
	pinterestHost = regexp.MustCompile(`^(?:[a-z0-9-]+\.)*pinterest\.(?:com|[a-z]{2}|co\.[a-z]{2}|com\.[a-z]{2})$`)
)

// rules is evaluated top to bottom; the first match wins. The generic food blog
// rule must stay last so platform rules take precedence.
var rules = []Rule{
	{Name: "instagram host", Platform: models.PlatformInstagram, match: hostIs("instagram.com", "instagr.am")},
	{Name: "tiktok host", Platform: models.PlatformTikTok, match: hostIs("tiktok.com")},
	{Name: "pinterest host", Platform: models.PlatformPinterest, match: func(in input) bool {
		return hostIs("pin.it")(in) || pinterestHost.MatchString(in.host)
	}},
	{Name: "facebook host", Platform: models.PlatformFacebook, match: hostIs("facebook.com", "fb.com", "fb.watch")},
	{Name: "twitter host", Platform: models.PlatformTwitter, match: hostIs("twitter.com", "x.com", "t.co")},
	{Name: "youtube host", Platform: models.PlatformYouTube, match: hostIs("youtube.com", "youtu.be")},
	{Name: "whatsapp link", Platform: models.PlatformWhatsApp, match: hostIs("wa.me", "whatsapp.com")},
	{Name: "evernote link", Platform: models.PlatformEvernote, match: func(in input) bool {
		return hostIs("evernote.com")(in) || strings.HasPrefix(in.lower, "evernote://") ||
			(in.url == nil && strings.Contains(in.lower, "<en-export"))
	}},
	{Name: "apple notes link", Platform: models.PlatformAppleNotes, match: func(in input) bool {
		if strings.HasPrefix(in.lower, "applenotes:") || strings.HasPrefix(in.lower, "mobilenotes://") {
			return true
		}
		return hostIs("icloud.com")(in) && strings.HasPrefix(in.url.Path, "/notes")
	}},
	{Name: "image", Platform: models.PlatformImageOCR, match: func(in input) bool {
		if strings.HasPrefix(in.lower, "data:image/") {
			return true
		}
		if in.url != nil {
			return imageSuffix.MatchString(in.url.Path)
		}
		return !strings.ContainsAny(in.raw, " \n") && imageSuffix.MatchString(in.raw)
	}},
	{Name: "mailto or email headers", Platform: models.PlatformEmail, match: func(in input) bool {
		if strings.HasPrefix(in.lower, "mailto:") {
			return true
		}
		return in.url == nil && len(emailHeaders.FindAllString(in.raw, 3)) >= 2
	}},
	{Name: "whatsapp chat export", Platform: models.PlatformWhatsApp, match: func(in input) bool {
		return in.url == nil && whatsAppLine.MatchString(in.raw)
	}},
	{Name: "generic recipe path", Platform: models.PlatformFoodBlog, match: func(in input) bool {
		if in.url == nil {
			return false
		}
		return genericRecipe.MatchString(in.url.Path) || genericRecipe.MatchString(in.url.RawQuery)
	}},
}

// Rules returns the ordered rule list.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Detect returns the platform for a URL or pasted text. It never fails; the
// boolean is false when no rule matches.
func Detect(raw string) (models.Platform, bool) {
	in := parse(raw)
	if in.raw == "" {
		return "", false
	}
	for _, r := range rules {
		if r.match(in) {
			return r.Platform, true
		}
	}
	return "", false
}

// IsSupported reports whether Detect finds a platform.
func IsSupported(raw string) bool {
	_, ok := Detect(raw)
	return ok
}

// MatchesPlatform reports whether a URL's host belongs to the platform. Food
// blogs accept any host.
func MatchesPlatform(p models.Platform, rawURL string) bool {
	if p == models.PlatformFoodBlog {
		return true
	}
	in := parse(rawURL)
	if in.url == nil {
		return false
	}
	for _, r := range rules {
		if r.Platform == p && r.Platform.IsSocial() && r.match(in) {
			return true
		}
	}
	return !p.IsSocial()
}

func parse(raw string) input {
	raw = strings.TrimSpace(raw)
	in := input{raw: raw, lower: strings.ToLower(raw)}

	candidate := raw
	if strings.HasPrefix(in.lower, "www.") || strings.HasPrefix(in.lower, "vm.") || strings.HasPrefix(in.lower, "m.") {
		candidate = "https://" + raw
	}
	if u, err := url.Parse(candidate); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		in.url = u
		in.host = strings.ToLower(u.Hostname())
	}
	return in
}

func hostIs(domains ...string) func(in input) bool {
	return func(in input) bool {
		if in.url == nil {
			return false
		}
		for _, d := range domains {
			if in.host == d || strings.HasSuffix(in.host, "."+d) {
				return true
			}
		}
		return false
	}
}
