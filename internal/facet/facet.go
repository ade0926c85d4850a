// Package facet builds the inverted indexes behind the per-person, per-tag,
// per-maker and per-series pages.
package facet

import (
	"sort"

	"golang.org/x/text/cases"

	"github.com/JakeFAU/review-catalog/internal/catalog"
)

// Kind is a classification dimension.
type Kind string

// Facet kinds. The value doubles as the listing URL segment.
const (
	Person Kind = "people"
	Tag    Kind = "tags"
	Maker  Kind = "makers"
	Series Kind = "series"
)

// Kinds lists every facet in emission order.
var Kinds = []Kind{Person, Tag, Maker, Series}

// Values returns the facet values a record carries for kind, in the
// record's own priority order.
func Values(r *catalog.Record, kind Kind) []string {
	switch kind {
	case Person:
		return r.People
	case Tag:
		return r.Tags
	case Maker:
		return single(r.Maker)
	case Series:
		return single(r.Series)
	default:
		return nil
	}
}

// Primary is the value used to anchor related-record blocks: the first
// listed person or tag, or the maker/series string.
func Primary(r *catalog.Record, kind Kind) string {
	vs := Values(r, kind)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func single(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// Index maps each facet value to the records carrying it, in first-seen
// record order.
type Index struct {
	kind    Kind
	byValue map[string][]*catalog.Record
	seen    []string
}

// Build indexes records for one facet kind.
func Build(records []*catalog.Record, kind Kind) *Index {
	ix := &Index{kind: kind, byValue: make(map[string][]*catalog.Record)}
	for _, r := range records {
		for _, v := range Values(r, kind) {
			if _, ok := ix.byValue[v]; !ok {
				ix.seen = append(ix.seen, v)
			}
			ix.byValue[v] = append(ix.byValue[v], r)
		}
	}
	return ix
}

// Kind returns the facet this index covers.
func (ix *Index) Kind() Kind { return ix.kind }

// Len is the number of distinct values.
func (ix *Index) Len() int { return len(ix.seen) }

// Records returns the records carrying value, or nil.
func (ix *Index) Records(value string) []*catalog.Record {
	return ix.byValue[value]
}

// Keys returns the distinct values sorted case-insensitively. Values that
// fold to the same key keep first-seen order.
func (ix *Index) Keys() []string {
	keys := make([]string, len(ix.seen))
	copy(keys, ix.seen)
	SortFold(keys)
	return keys
}

// SortFold sorts values by their Unicode case folding, stably.
func SortFold(values []string) {
	fold := cases.Fold()
	folded := make(map[string]string, len(values))
	for _, v := range values {
		folded[v] = fold.String(v)
	}
	sort.SliceStable(values, func(i, j int) bool {
		return folded[values[i]] < folded[values[j]]
	})
}

// Set holds one index per facet kind.
type Set struct {
	People *Index
	Tags   *Index
	Makers *Index
	Series *Index
}

// BuildAll indexes records for every facet kind.
func BuildAll(records []*catalog.Record) Set {
	return Set{
		People: Build(records, Person),
		Tags:   Build(records, Tag),
		Makers: Build(records, Maker),
		Series: Build(records, Series),
	}
}

// Get returns the index for kind.
func (s Set) Get(kind Kind) *Index {
	switch kind {
	case Person:
		return s.People
	case Tag:
		return s.Tags
	case Maker:
		return s.Makers
	case Series:
		return s.Series
	default:
		return nil
	}
}
