package detector

import (
	"regexp"
	"strings"

	"github.com/mealvault/mealvault/internal/models"
)

var (
	instagramID = regexp.MustCompile(`/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)
	tiktokID    = regexp.MustCompile(`/video/(\d+)`)
	youtubePath = regexp.MustCompile(`/(?:shorts|embed|live)/([A-Za-z0-9_-]{6,})`)
	pinID       = regexp.MustCompile(`/pin/([A-Za-z0-9_-]+)`)
	statusID    = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	facebookID  = regexp.MustCompile(`/(?:posts|videos|reel)/([A-Za-z0-9_.-]+)`)
)

// ContentID extracts the platform's identifier for the content at rawURL. It
// returns an empty string when none can be found.
func ContentID(p models.Platform, rawURL string) string {
	in := parse(rawURL)
	if in.url == nil {
		return ""
	}
	path := in.url.Path
	query := in.url.Query()

	switch p {
	case models.PlatformInstagram:
		return firstGroup(instagramID, path)
	case models.PlatformTikTok:
		if id := firstGroup(tiktokID, path); id != "" {
			return id
		}
		// Short links (vm.tiktok.com/XYZ) only carry a redirect code.
		if strings.HasPrefix(in.host, "vm.") || strings.HasPrefix(in.host, "vt.") {
			return lastSegment(path)
		}
	case models.PlatformYouTube:
		if v := query.Get("v"); v != "" {
			return v
		}
		if in.host == "youtu.be" {
			return lastSegment(path)
		}
		return firstGroup(youtubePath, path)
	case models.PlatformPinterest:
		if in.host == "pin.it" {
			return lastSegment(path)
		}
		return firstGroup(pinID, path)
	case models.PlatformTwitter:
		return firstGroup(statusID, path)
	case models.PlatformFacebook:
		if id := query.Get("story_fbid"); id != "" {
			return id
		}
		if id := query.Get("v"); id != "" {
			return id
		}
		if in.host == "fb.watch" {
			return lastSegment(path)
		}
		return firstGroup(facebookID, path)
	case models.PlatformFoodBlog:
		return lastSegment(path)
	}
	return ""
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func lastSegment(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
