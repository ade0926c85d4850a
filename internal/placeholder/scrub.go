package placeholder

import (
	"context"
	"slices"

	"github.com/JakeFAU/review-catalog/internal/mediaurl"
)

// Classifier decides whether a URL is a placeholder image.
type Classifier interface {
	IsPlaceholder(ctx context.Context, url string) bool
}

// Sample image fields scrubbed in each row.
const (
	FieldSmall = "sample_images_small"
	FieldLarge = "sample_images_large"
	fieldHero  = "hero_image"
)

// ScrubResult summarizes a scrub pass.
type ScrubResult struct {
	Checked int
	Changed int
	Removed int
}

// Scrub cleans the sample image lists of the first maxCheck rows in place
// (all rows when maxCheck <= 0).
func Scrub(ctx context.Context, c Classifier, rows []map[string]any, maxCheck int) ScrubResult {
	limit := len(rows)
	if maxCheck > 0 && maxCheck < limit {
		limit = maxCheck
	}
	var res ScrubResult
	for _, row := range rows[:limit] {
		res.Checked++
		changed, removed := ScrubRow(ctx, c, row)
		res.Removed += removed
		if changed {
			res.Changed++
		}
	}
	return res
}

// ScrubRow drops sample images that repeat the hero image or that c flags as
// placeholders. Lists are upgraded to https and deduplicated; a list left
// empty is removed from the row. It reports whether the row changed and how
// many placeholders were removed.
func ScrubRow(ctx context.Context, c Classifier, row map[string]any) (changed bool, removed int) {
	hero := ""
	if s, ok := row[fieldHero].(string); ok {
		hero = mediaurl.UpgradeHTTPS(s)
	}
	fields := []string{FieldSmall, FieldLarge}
	cleaned := make(map[string][]string, len(fields))
	for _, field := range fields {
		_, present := row[field]
		before := mediaurl.DedupUpgrade(urlStrings(row[field]))
		kept := make([]string, 0, len(before))
		for _, u := range before {
			if hero != "" && u == hero {
				continue
			}
			if c.IsPlaceholder(ctx, u) {
				removed++
				continue
			}
			kept = append(kept, u)
		}
		if present {
			cleaned[field] = kept
		}
		if !slices.Equal(before, kept) {
			changed = true
		}
	}
	if !changed {
		return false, removed
	}
	// A changed row carries both lists in normalized form.
	for field, kept := range cleaned {
		if len(kept) == 0 {
			delete(row, field)
		} else {
			row[field] = kept
		}
	}
	return true, removed
}

func urlStrings(v any) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
