package jobs

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query keys that never change which recipe a link points
// at.
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "igshid": true, "igsh": true,
	"si": true, "ref": true, "ref_src": true, "mc_cid": true, "mc_eid": true,
}

// CanonicalURL normalizes a link for duplicate detection: lowercase scheme and
// host, no "www." prefix, no fragment, no tracking parameters, sorted query
// and no trailing slash. Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for key := range q {
		if trackingParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, key := range keys {
		for j, v := range q[key] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	u.RawQuery = b.String()

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String()
}

// UniqueURLs drops blank entries and links that canonicalize to one already
// seen, keeping the first spelling of each and the caller's order. It also
// returns how many duplicates were dropped.
func UniqueURLs(urls []string) ([]string, int) {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	dropped := 0
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key := CanonicalURL(raw)
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		out = append(out, raw)
	}
	return out, dropped
}
