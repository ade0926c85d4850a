package site

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/catalog"
	"github.com/JakeFAU/review-catalog/internal/facet"
	"github.com/JakeFAU/review-catalog/internal/ordering"
	"github.com/JakeFAU/review-catalog/internal/pager"
	"github.com/JakeFAU/review-catalog/internal/related"
	"github.com/JakeFAU/review-catalog/internal/render"
)

// Pager is the pagination block of a listing page. Prev and Next are paths
// relative to the site root; "" is a valid target (the home page), so the
// Has flags say whether a link exists.
type Pager struct {
	Page    int
	Total   int
	Prev    string
	Next    string
	HasPrev bool
	HasNext bool
}

// SortTab is one entry of the listing sort switcher.
type SortTab struct {
	ID    string
	Label string
	Href  string
}

// Link is an entry on a facet listing or the featured hub.
type Link struct {
	Name  string
	Title string
	Href  string
	Count int
}

type sortPage struct {
	key     string
	heading string
	records []*catalog.Record
}

var sortTabs = []SortTab{
	{ID: string(ordering.Latest), Label: "Latest", Href: ""},
	{ID: string(ordering.Rank), Label: "Ranking", Href: string(ordering.Rank) + "/"},
	{ID: string(ordering.Reviews), Label: "Reviews", Href: string(ordering.Reviews) + "/"},
	{ID: string(ordering.Movies), Label: "With video", Href: string(ordering.Movies) + "/"},
	{ID: string(ordering.Images), Label: "Most images", Href: string(ordering.Images) + "/"},
}

var facetLabels = map[facet.Kind]string{
	facet.Person: "People",
	facet.Tag:    "Tags",
	facet.Maker:  "Makers",
	facet.Series: "Series",
}

// Legacy featured sub-pages now live at the sort pages.
var featuredRedirects = []struct{ from, to string }{
	{from: "featured/rank/", to: "../../" + string(ordering.Rank) + "/"},
	{from: "featured/sample-movies/", to: "../../" + string(ordering.Movies) + "/"},
	{from: "featured/sample-images/", to: "../../" + string(ordering.Images) + "/"},
}

// RootPath climbs from the directory rel back to the site root.
func RootPath(rel string) string {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return ""
	}
	return strings.Repeat("../", strings.Count(rel, "/")+1)
}

// RedirectHTML is a minimal meta-refresh page.
func RedirectHTML(target string) []byte {
	return []byte(`<!doctype html><meta charset="utf-8"><meta http-equiv="refresh" content="0; url=` +
		target + `"><title>Redirect</title>`)
}

func homeHref(n int) string {
	if n == 1 {
		return ""
	}
	return "pages/" + strconv.Itoa(n) + "/"
}

func sortHref(key string) func(int) string {
	return func(n int) string {
		if n == 1 {
			return key + "/"
		}
		return key + "/pages/" + strconv.Itoa(n) + "/"
	}
}

func pagerFor(p pager.Page[*catalog.Record], href func(int) string) *Pager {
	out := &Pager{Page: p.Number, Total: p.Total}
	if prev := p.Prev(); prev > 0 {
		out.Prev, out.HasPrev = href(prev), true
	}
	if next := p.Next(); next > 0 {
		out.Next, out.HasNext = href(next), true
	}
	return out
}

func (b *Builder) emit(e *emitter, p plan) error {
	if err := b.emitHome(e, p.orders.Latest); err != nil {
		return err
	}
	rankHeading := "Ranking"
	if p.orders.Rank.Synthetic {
		rankHeading = "Ranking (latest)"
	}
	for _, sp := range []sortPage{
		{key: string(ordering.Rank), heading: rankHeading, records: p.orders.Rank.Records},
		{key: string(ordering.Reviews), heading: "By reviews", records: p.orders.Reviews},
		{key: string(ordering.Movies), heading: "With sample video", records: p.orders.Movies},
		{key: string(ordering.Images), heading: "Most sample images", records: p.orders.Images},
	} {
		if err := b.emitSorted(e, sp); err != nil {
			return err
		}
	}
	for _, r := range p.orders.Latest {
		if err := e.page(render.PageDetail, r.Path(), detailData(r, p.related[r.ID], p.byID)); err != nil {
			return err
		}
	}
	for _, kind := range facet.Kinds {
		if err := b.emitFacet(e, p.facets.Get(kind)); err != nil {
			return err
		}
	}
	if err := emitFeatured(e); err != nil {
		return err
	}
	return e.page(render.PageSearch, "search/", map[string]any{
		"page_title":          "Search",
		"heading":             "Search",
		"nav_active":          "search",
		"js_path":             RootPath("search/") + "assets/search.js",
		"search_manifest_b64": p.search.EncodedManifest,
	})
}

// emitHome writes the newest-first listing: page 1 at the root, later pages
// under pages/<n>/, and a redirect from the old pages/1/ address.
func (b *Builder) emitHome(e *emitter, newest []*catalog.Record) error {
	for _, pg := range pager.Paginate(newest, b.cfg.PerPage) {
		title := "Top"
		if !pg.First() {
			title = fmt.Sprintf("All records %d/%d", pg.Number, pg.Total)
		}
		data := listingData(title, "All records", string(ordering.Latest), pg.Items, pagerFor(pg, homeHref))
		if err := e.page(render.PageIndex, homeHref(pg.Number), data); err != nil {
			return err
		}
	}
	return e.redirect("pages/1/", "../../")
}

func (b *Builder) emitSorted(e *emitter, sp sortPage) error {
	href := sortHref(sp.key)
	for _, pg := range pager.Paginate(sp.records, b.cfg.PerPage) {
		title := sp.heading
		if !pg.First() {
			title = fmt.Sprintf("%s %d/%d", sp.heading, pg.Number, pg.Total)
		}
		data := listingData(title, sp.heading, sp.key, pg.Items, pagerFor(pg, href))
		data["rank_start"] = (pg.Number-1)*b.cfg.PerPage + 1
		if err := e.page(render.PageIndex, href(pg.Number), data); err != nil {
			return err
		}
	}
	return nil
}

// emitFacet writes the listing of every value of one facet and one
// unpaginated page per value. Values whose slugs collide keep the first
// value's page.
func (b *Builder) emitFacet(e *emitter, ix *facet.Index) error {
	kind := ix.Kind()
	label := facetLabels[kind]
	keys := ix.Keys()

	items := make([]Link, 0, len(keys))
	written := map[string]string{}
	for _, v := range keys {
		items = append(items, Link{Name: v, Href: facet.Path(kind, v), Count: len(ix.Records(v))})
	}
	if err := e.page(render.PageList, string(kind)+"/", map[string]any{
		"page_title": label,
		"heading":    label,
		"items":      items,
		"nav_active": string(kind),
	}); err != nil {
		return err
	}

	for _, v := range keys {
		rel := facet.Path(kind, v)
		if prev, dup := written[rel]; dup {
			b.log.Warn("facet slug collision, keeping first value",
				zap.String("facet", string(kind)), zap.String("kept", prev), zap.String("skipped", v))
			continue
		}
		written[rel] = v
		heading := label + ": " + v
		data := listingData(heading, heading, "", ordering.Newest(ix.Records(v)), nil)
		data["nav_active"] = string(kind)
		delete(data, "sort_tabs")
		if err := e.page(render.PageIndex, rel, data); err != nil {
			return err
		}
	}
	return nil
}

func emitFeatured(e *emitter) error {
	root := RootPath("featured/")
	if err := e.page(render.PageFeatured, "featured/", map[string]any{
		"page_title": "Featured",
		"heading":    "Featured",
		"nav_active": "featured",
		"featured_links": []Link{
			{Href: root + string(ordering.Rank) + "/", Title: "Ranking"},
			{Href: root + string(ordering.Movies) + "/", Title: "With sample video"},
			{Href: root + string(ordering.Images) + "/", Title: "With sample images"},
		},
	}); err != nil {
		return err
	}
	for _, r := range featuredRedirects {
		if err := e.redirect(r.from, r.to); err != nil {
			return err
		}
	}
	return nil
}

func listingData(title, heading, sortID string, works []*catalog.Record, pg *Pager) map[string]any {
	data := map[string]any{
		"page_title": title,
		"heading":    heading,
		"works":      works,
		"nav_active": "home",
		"sort_tabs":  sortTabs,
		"sort_id":    sortID,
	}
	if pg != nil {
		data["pager"] = pg
	}
	return data
}

func detailData(r *catalog.Record, blocks related.Blocks, byID map[string]*catalog.Record) map[string]any {
	return map[string]any{
		"page_title":         r.Title,
		"heading":            r.Title,
		"record":             r,
		"lightbox_images":    r.LightboxImages(),
		"grid_images":        r.GridImages(),
		"video_aspect_ratio": r.VideoAspectRatio(),
		"related_person":     related.Lookup(blocks.Person, byID),
		"related_maker":      related.Lookup(blocks.Maker, byID),
		"related_series":     related.Lookup(blocks.Series, byID),
		"related_tag":        related.Lookup(blocks.Tag, byID),
	}
}
