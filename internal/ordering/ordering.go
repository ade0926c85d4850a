// Package ordering provides the total orderings listings are paginated by.
// Every function returns a new slice and leaves its input untouched; all
// sorts are stable so ties keep their input order.
package ordering

import (
	"sort"

	"github.com/JakeFAU/review-catalog/internal/catalog"
)

// Key names an ordering. The value doubles as the URL segment of its pages.
type Key string

// Orderings with their own listing pages.
const (
	Latest  Key = "latest"
	Rank    Key = "rank"
	Reviews Key = "reviews"
	Movies  Key = "movies"
	Images  Key = "images"
)

// NewerFirst reports whether a sorts before b in newest-first order. Undated
// records sort after every dated record.
func NewerFirst(a, b *catalog.Record) bool {
	if a.HasDate != b.HasDate {
		return a.HasDate
	}
	if !a.HasDate {
		return false
	}
	return a.ParsedDate.After(b.ParsedDate)
}

// Newest orders records newest first.
func Newest(records []*catalog.Record) []*catalog.Record {
	out := clone(records)
	sort.SliceStable(out, func(i, j int) bool { return NewerFirst(out[i], out[j]) })
	return out
}

// Ranking is the rank ordering plus whether its positions are synthetic.
type Ranking struct {
	Records []*catalog.Record
	// Synthetic is set when no record carried a rank and the newest-first
	// order stands in, numbered 1..N.
	Synthetic bool
}

// ByRank orders by ascending rank, unranked records last in newest-first
// order. newest must already be in newest-first order.
func ByRank(newest []*catalog.Record) Ranking {
	out := clone(newest)
	ranked := false
	for _, r := range out {
		if r.Rank != nil {
			ranked = true
			break
		}
	}
	if !ranked {
		return Ranking{Records: out, Synthetic: true}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Rank, out[j].Rank
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return Ranking{Records: out}
}

// ByRating sorts as the tuple (no rating, -average, -count, -recency).
// Unrated records follow every rated one and keep their input order.
func ByRating(newest []*catalog.Record) []*catalog.Record {
	out := clone(newest)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HasRating() != b.HasRating() {
			return a.HasRating()
		}
		if !a.HasRating() {
			return false
		}
		if *a.ReviewAverage != *b.ReviewAverage {
			return *a.ReviewAverage > *b.ReviewAverage
		}
		if ac, bc := count(a), count(b); ac != bc {
			return ac > bc
		}
		return NewerFirst(a, b)
	})
	return out
}

// WithVideo keeps records that have a sample video, in input order.
func WithVideo(newest []*catalog.Record) []*catalog.Record {
	out := make([]*catalog.Record, 0, len(newest))
	for _, r := range newest {
		if r.HasVideo {
			out = append(out, r)
		}
	}
	return out
}

// ByImageCount keeps records with sample images, most images first, then
// most recent.
func ByImageCount(newest []*catalog.Record) []*catalog.Record {
	out := make([]*catalog.Record, 0, len(newest))
	for _, r := range newest {
		if r.HasImages {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ImageCount != out[j].ImageCount {
			return out[i].ImageCount > out[j].ImageCount
		}
		return NewerFirst(out[i], out[j])
	})
	return out
}

// Set bundles every listing ordering computed for one build.
type Set struct {
	Latest  []*catalog.Record
	Rank    Ranking
	Reviews []*catalog.Record
	Movies  []*catalog.Record
	Images  []*catalog.Record
}

// Build computes all orderings from the record list.
func Build(records []*catalog.Record) Set {
	newest := Newest(records)
	return Set{
		Latest:  newest,
		Rank:    ByRank(newest),
		Reviews: ByRating(newest),
		Movies:  WithVideo(newest),
		Images:  ByImageCount(newest),
	}
}

func count(r *catalog.Record) int {
	if r.ReviewCount == nil {
		return 0
	}
	return *r.ReviewCount
}

func clone(in []*catalog.Record) []*catalog.Record {
	out := make([]*catalog.Record, len(in))
	copy(out, in)
	return out
}
