package site

import (
	"strings"

	"github.com/JakeFAU/review-catalog/internal/bundle"
)

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// ResolveBaseURL picks the public site root used for canonical links, the
// sitemap and the feed. Precedence: explicit override, SITE_URL, the
// bundle's site_url then base_url, and finally a GitHub Pages URL inferred
// from GITHUB_REPOSITORY. The result ends in "/" or is empty.
func ResolveBaseURL(override string, meta bundle.Meta, env LookupEnv) string {
	if env == nil {
		env = func(string) (string, bool) { return "", false }
	}
	get := func(key string) string {
		v, _ := env(key)
		return strings.TrimSpace(v)
	}

	base := strings.TrimSpace(override)
	if base == "" {
		base = get("SITE_URL")
	}
	if base == "" {
		base = strings.TrimSpace(meta.SiteURL)
	}
	if base == "" {
		base = strings.TrimSpace(meta.BaseURL)
	}
	if base == "" {
		if owner, repo, ok := strings.Cut(get("GITHUB_REPOSITORY"), "/"); ok && owner != "" && repo != "" {
			base = "https://" + owner + ".github.io/" + repo + "/"
		}
	}
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}
