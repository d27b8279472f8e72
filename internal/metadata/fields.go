package metadata

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

// fieldMap lists, per canonical field, the dotted payload paths tried in
// order. The first path holding a usable value wins.
type fieldMap struct {
	ContentID      []string
	URL            []string
	Handle         []string
	DisplayName    []string
	ProfileURL     []string
	Verified       []string
	Likes          []string
	Comments       []string
	Shares         []string
	Views          []string
	Saves          []string
	Published      []string
	Tags           []string
	Caption        []string
	Categories     []string
	Visibility     []string
	Private        []string
	AllowsDownload []string
	Specific       map[string][]string
}

// common is consulted after the platform map for every field.
var common = fieldMap{
	ContentID:      []string{"id", "contentId", "content_id"},
	URL:            []string{"url", "link", "permalink"},
	Handle:         []string{"author.handle", "author.username", "username", "author"},
	DisplayName:    []string{"author.displayName", "author.name", "authorName"},
	ProfileURL:     []string{"author.profileUrl", "author.url"},
	Verified:       []string{"author.verified", "verified"},
	Likes:          []string{"likes", "likeCount", "likesCount"},
	Comments:       []string{"comments", "commentCount", "commentsCount"},
	Shares:         []string{"shares", "shareCount", "sharesCount"},
	Views:          []string{"views", "viewCount", "viewsCount"},
	Saves:          []string{"saves", "saveCount", "savesCount"},
	Published:      []string{"publishedAt", "published", "createdAt", "timestamp"},
	Tags:           []string{"tags", "hashtags"},
	Caption:        []string{"caption", "description", "text", "title"},
	Categories:     []string{"categories", "category"},
	Visibility:     []string{"visibility", "privacy"},
	Private:        []string{"isPrivate", "private"},
	AllowsDownload: []string{"allowsDownload", "downloadable"},
}

var platformFields = map[models.Platform]fieldMap{
	models.PlatformInstagram: {
		ContentID:   []string{"shortCode", "shortcode"},
		Handle:      []string{"ownerUsername", "owner.username"},
		DisplayName: []string{"ownerFullName", "owner.full_name"},
		Verified:    []string{"owner.is_verified"},
		Likes:       []string{"edge_liked_by.count", "like_count"},
		Comments:    []string{"edge_media_to_comment.count", "comment_count"},
		Views:       []string{"videoViewCount", "videoPlayCount", "video_view_count"},
		Published:   []string{"taken_at_timestamp", "taken_at"},
		Private:     []string{"owner.is_private"},
		Specific: map[string][]string{
			"mediaType":    {"type", "media_type"},
			"isVideo":      {"isVideo", "is_video"},
			"locationName": {"locationName", "location.name"},
		},
	},
	models.PlatformTikTok: {
		Handle:         []string{"authorMeta.name", "author.uniqueId"},
		DisplayName:    []string{"authorMeta.nickName", "author.nickname"},
		ProfileURL:     []string{"authorMeta.profileUrl"},
		Verified:       []string{"authorMeta.verified", "author.verified"},
		Likes:          []string{"diggCount", "stats.diggCount"},
		Comments:       []string{"stats.commentCount"},
		Shares:         []string{"stats.shareCount"},
		Views:          []string{"playCount", "stats.playCount"},
		Saves:          []string{"collectCount", "stats.collectCount"},
		Published:      []string{"createTimeISO", "createTime"},
		AllowsDownload: []string{"downloadable"},
		Specific: map[string][]string{
			"musicName":     {"musicMeta.musicName", "music.title"},
			"videoDuration": {"videoMeta.duration", "video.duration"},
		},
	},
	models.PlatformPinterest: {
		Handle:      []string{"pinner.username", "creator.username"},
		DisplayName: []string{"pinner.full_name", "creator.full_name"},
		Likes:       []string{"reaction_counts.1", "aggregated_pin_data.aggregated_stats.likes"},
		Saves:       []string{"repin_count", "aggregated_pin_data.aggregated_stats.saves"},
		Comments:    []string{"comment_count"},
		Published:   []string{"created_at"},
		Categories:  []string{"pin_join.visual_annotation"},
		Specific: map[string][]string{
			"boardName": {"board.name"},
			"sourceUrl": {"link", "source_url"},
		},
	},
	models.PlatformFacebook: {
		ContentID:  []string{"postId", "post_id"},
		Handle:     []string{"user.name", "pageName"},
		ProfileURL: []string{"user.profileUrl", "pageUrl"},
		Likes:      []string{"reactionsCount", "likes"},
		Shares:     []string{"sharesCount"},
		Views:      []string{"viewsCount"},
		Published:  []string{"time", "timestamp"},
		Specific: map[string][]string{
			"pageId": {"pageId", "facebookId"},
		},
	},
	models.PlatformTwitter: {
		ContentID:   []string{"id_str", "tweetId"},
		Handle:      []string{"author.userName", "user.screen_name"},
		DisplayName: []string{"author.name", "user.name"},
		Verified:    []string{"author.isVerified", "author.isBlueVerified", "user.verified"},
		Likes:       []string{"favorite_count", "likeCount"},
		Comments:    []string{"reply_count", "replyCount"},
		Shares:      []string{"retweet_count", "retweetCount"},
		Saves:       []string{"bookmarkCount"},
		Published:   []string{"created_at", "createdAt"},
		Caption:     []string{"full_text", "text"},
		Specific: map[string][]string{
			"lang":       {"lang"},
			"quoteCount": {"quote_count", "quoteCount"},
		},
	},
	models.PlatformYouTube: {
		ContentID:  []string{"videoId", "id"},
		Handle:     []string{"channelName", "snippet.channelTitle"},
		ProfileURL: []string{"channelUrl"},
		Verified:   []string{"isChannelVerified"},
		Likes:      []string{"likes", "statistics.likeCount"},
		Comments:   []string{"commentsCount", "statistics.commentCount"},
		Views:      []string{"viewCount", "statistics.viewCount"},
		Published:  []string{"date", "snippet.publishedAt"},
		Tags:       []string{"snippet.tags"},
		Caption:    []string{"snippet.description"},
		Visibility: []string{"status.privacyStatus"},
		Specific: map[string][]string{
			"duration":    {"duration", "contentDetails.duration"},
			"channelId":   {"channelId", "snippet.channelId"},
			"subscribers": {"numberOfSubscribers"},
		},
	},
}

var hashtag = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// lookup walks a dotted path through nested maps.
func lookup(raw map[string]any, path string) (any, bool) {
	var cur any = raw
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func pathsFor(p models.Platform, pick func(fieldMap) []string) []string {
	own := pick(platformFields[p])
	return append(append([]string(nil), own...), pick(common)...)
}

func firstString(raw map[string]any, paths []string) *string {
	for _, path := range paths {
		v, ok := lookup(raw, path)
		if !ok {
			continue
		}
		if s, ok := asString(v); ok && s != "" {
			return &s
		}
	}
	return nil
}

func firstInt(raw map[string]any, paths []string) *int64 {
	for _, path := range paths {
		v, ok := lookup(raw, path)
		if !ok {
			continue
		}
		if n, ok := asInt(v); ok {
			return &n
		}
	}
	return nil
}

func firstBool(raw map[string]any, paths []string) *bool {
	for _, path := range paths {
		v, ok := lookup(raw, path)
		if !ok {
			continue
		}
		if b, ok := asBool(v); ok {
			return &b
		}
	}
	return nil
}

func firstTime(raw map[string]any, paths []string) *time.Time {
	for _, path := range paths {
		v, ok := lookup(raw, path)
		if !ok {
			continue
		}
		if t, ok := asTime(v); ok {
			return &t
		}
	}
	return nil
}

func firstStrings(raw map[string]any, paths []string) []string {
	for _, path := range paths {
		v, ok := lookup(raw, path)
		if !ok {
			continue
		}
		if list := asStrings(v); list != nil {
			return list
		}
	}
	return nil
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

var compactCount = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([kKmMbB]?)$`)

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		// Scrapers often return display strings such as "1,204" or "12.5K".
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		m := compactCount.FindStringSubmatch(s)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		switch strings.ToLower(m[2]) {
		case "k":
			f *= 1e3
		case "m":
			f *= 1e6
		case "b":
			f *= 1e9
		}
		return int64(math.Round(f)), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func asTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		for _, layout := range []string{time.RFC3339Nano, time.RubyDate, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return t.UTC(), true
			}
		}
	}
	n, ok := asInt(v)
	if !ok || n <= 0 {
		return time.Time{}, false
	}
	// Epoch values above 1e12 are milliseconds.
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return cleanList(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := asString(item); ok {
				out = append(out, s)
				continue
			}
			// Apify returns tag objects such as {"name": "pasta"}.
			if m, ok := item.(map[string]any); ok {
				if s := firstString(m, []string{"name", "title", "tag"}); s != nil {
					out = append(out, *s)
				}
			}
		}
		return cleanList(out)
	case string:
		return cleanList(strings.Split(t, ","))
	}
	return nil
}

func cleanList(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func hashtags(text string) []string {
	matches := hashtag.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return cleanList(tags)
}
