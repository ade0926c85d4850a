// Package mediaurl holds the URL helpers shared by the normalizer and the
// placeholder detector.
package mediaurl

import "strings"

// placeholderHints are substrings that mark a stand-in image asset.
var placeholderHints = []string{
	"now_print",
	"nowprint",
	"nowprinting",
	"now_printing",
	"noimage",
	"no_img",
	"no-img",
	"nophoto",
	"no-photo",
	"comingsoon",
	"coming_soon",
	"placeholder",
}

// UpgradeHTTPS trims raw and rewrites an http:// prefix to https://.
// Nothing else about the URL is touched.
func UpgradeHTTPS(raw string) string {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// HasPlaceholderHint reports whether the URL names a known placeholder asset.
func HasPlaceholderHint(raw string) bool {
	low := strings.ToLower(raw)
	for _, h := range placeholderHints {
		if strings.Contains(low, h) {
			return true
		}
	}
	return false
}

// DedupUpgrade upgrades every URL, drops empties and keeps the first
// occurrence of each.
func DedupUpgrade(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		u := UpgradeHTTPS(raw)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
