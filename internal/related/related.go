// Package related derives the "more like this" blocks shown on detail pages.
package related

import (
	"github.com/JakeFAU/review-catalog/internal/catalog"
	"github.com/JakeFAU/review-catalog/internal/facet"
	"github.com/JakeFAU/review-catalog/internal/ordering"
)

// DefaultLimit caps each block.
const DefaultLimit = 12

// Blocks holds the related record ids for one record, newest first.
type Blocks struct {
	Person []string
	Maker  []string
	Series []string
	Tag    []string
}

// Map is keyed by record id.
type Map map[string]Blocks

// Resolver computes related blocks from a prebuilt facet set.
type Resolver struct {
	facets facet.Set
	limit  int
	// sorted caches each facet value's records in newest-first order.
	sorted map[facet.Kind]map[string][]*catalog.Record
}

// NewResolver returns a Resolver over facets. A non-positive limit means
// DefaultLimit.
func NewResolver(facets facet.Set, limit int) *Resolver {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Resolver{
		facets: facets,
		limit:  limit,
		sorted: make(map[facet.Kind]map[string][]*catalog.Record, len(facet.Kinds)),
	}
}

// Resolve computes blocks for every record.
func (rv *Resolver) Resolve(records []*catalog.Record) Map {
	out := make(Map, len(records))
	for _, r := range records {
		out[r.ID] = rv.For(r)
	}
	return out
}

// For computes the blocks for a single record. Person and tag blocks are
// anchored on the record's first-listed value only.
func (rv *Resolver) For(r *catalog.Record) Blocks {
	return Blocks{
		Person: rv.pick(r, facet.Person),
		Maker:  rv.pick(r, facet.Maker),
		Series: rv.pick(r, facet.Series),
		Tag:    rv.pick(r, facet.Tag),
	}
}

func (rv *Resolver) pick(r *catalog.Record, kind facet.Kind) []string {
	value := facet.Primary(r, kind)
	if value == "" {
		return []string{}
	}
	candidates := rv.newestFor(kind, value)
	out := make([]string, 0, min(rv.limit, len(candidates)))
	used := map[string]struct{}{r.ID: {}}
	for _, c := range candidates {
		if _, dup := used[c.ID]; dup {
			continue
		}
		used[c.ID] = struct{}{}
		out = append(out, c.ID)
		if len(out) >= rv.limit {
			break
		}
	}
	return out
}

func (rv *Resolver) newestFor(kind facet.Kind, value string) []*catalog.Record {
	byValue, ok := rv.sorted[kind]
	if !ok {
		byValue = make(map[string][]*catalog.Record)
		rv.sorted[kind] = byValue
	}
	if recs, ok := byValue[value]; ok {
		return recs
	}
	ix := rv.facets.Get(kind)
	if ix == nil {
		return nil
	}
	recs := ordering.Newest(ix.Records(value))
	byValue[value] = recs
	return recs
}

// Lookup turns id blocks back into records using byID, skipping unknown ids.
func Lookup(ids []string, byID map[string]*catalog.Record) []*catalog.Record {
	out := make([]*catalog.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
