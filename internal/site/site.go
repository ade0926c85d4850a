// Package site drives a catalog build: it loads the record bundle, derives
// every index and ordering, compiles the search payload and emits the full
// static artifact set through a renderer into a blob store.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/bundle"
	"github.com/JakeFAU/review-catalog/internal/catalog"
	"github.com/JakeFAU/review-catalog/internal/facet"
	"github.com/JakeFAU/review-catalog/internal/metrics"
	"github.com/JakeFAU/review-catalog/internal/ordering"
	"github.com/JakeFAU/review-catalog/internal/pager"
	"github.com/JakeFAU/review-catalog/internal/related"
	"github.com/JakeFAU/review-catalog/internal/searchindex"
	"github.com/JakeFAU/review-catalog/internal/storage"
)

// EventBuildCompleted is the kind of the message published after a build.
const EventBuildCompleted = "catalog.build.completed"

// DefaultSiteName is used when neither the config nor the bundle names the site.
const DefaultSiteName = "Catalog"

// ErrUnsafePath is returned when a record or facet value would be written
// outside its page directory.
var ErrUnsafePath = errors.New("unsafe output path")

// Renderer turns a page context into markup.
type Renderer interface {
	Render(pageType string, data map[string]any) ([]byte, error)
}

// Publisher announces finished builds.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) (string, error)
}

// IDGenerator names builds.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock stamps the feed and build events.
type Clock interface {
	Now() time.Time
}

// Config tunes a build.
type Config struct {
	SiteName     string
	BaseURL      string
	PerPage      int
	RelatedLimit int
	FeedItems    int
	ShardDir     string
	AssetsDir    string
}

// Deps are the collaborators of a Builder. Publisher and Env are optional.
type Deps struct {
	Source    bundle.Source
	Renderer  Renderer
	Output    storage.BlobStore
	Compiler  *searchindex.Compiler
	Publisher Publisher
	IDs       IDGenerator
	Clock     Clock
	Env       LookupEnv
	Logger    *zap.Logger
}

// Report summarizes a finished build.
type Report struct {
	BuildID   string        `json:"build_id"`
	Records   int           `json:"records"`
	Dropped   int           `json:"dropped"`
	Pages     int           `json:"pages"`
	Redirects int           `json:"redirects"`
	Shards    int           `json:"shards"`
	Assets    int           `json:"assets"`
	BaseURL   string        `json:"base_url"`
	Feed      bool          `json:"feed"`
	Generated string        `json:"generated_at"`
	Duration  time.Duration `json:"-"`
}

// Builder runs builds.
type Builder struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New validates deps and fills config defaults.
func New(cfg Config, deps Deps) (*Builder, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("site: record source is required")
	case deps.Renderer == nil:
		return nil, errors.New("site: renderer is required")
	case deps.Output == nil:
		return nil, errors.New("site: output store is required")
	case deps.Compiler == nil:
		return nil, errors.New("site: search compiler is required")
	case deps.IDs == nil:
		return nil, errors.New("site: id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("site: clock is required")
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = pager.DefaultPerPage
	}
	if cfg.RelatedLimit <= 0 {
		cfg.RelatedLimit = related.DefaultLimit
	}
	if cfg.FeedItems <= 0 {
		cfg.FeedItems = DefaultFeedItems
	}
	if cfg.ShardDir == "" {
		cfg.ShardDir = searchindex.DefaultShardDir
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{cfg: cfg, deps: deps, log: log}, nil
}

// plan is everything derived from the records before anything is written.
type plan struct {
	siteName string
	baseURL  string
	records  []*catalog.Record
	byID     map[string]*catalog.Record
	facets   facet.Set
	orders   ordering.Set
	related  related.Map
	search   searchindex.Payload
}

// Build runs one full build. The output store is only reset once the bundle
// has loaded and every index, ordering and the search payload are computed,
// so a bad input leaves the previous artifacts in place.
func (b *Builder) Build(ctx context.Context) (Report, error) {
	start := time.Now()
	buildID, err := b.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("build id: %w", err)
	}
	log := b.log.With(zap.String("build_id", buildID))

	src, err := b.deps.Source.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load records: %w", err)
	}
	records, dropped := catalog.NormalizeAll(src.Rows)
	metrics.ObserveRecords(len(records), dropped)
	log.Info("records normalized", zap.Int("records", len(records)), zap.Int("dropped", dropped))

	p, err := b.plan(src.Meta, records)
	if err != nil {
		return Report{}, err
	}

	if err := b.deps.Output.Reset(ctx); err != nil {
		return Report{}, fmt.Errorf("reset output: %w", err)
	}

	e := newEmitter(ctx, b.deps.Output, b.deps.Renderer, p.siteName, p.baseURL)
	assets, err := copyAssets(ctx, b.deps.Output, b.cfg.AssetsDir, log)
	if err != nil {
		return Report{}, err
	}
	if err := b.emit(e, p); err != nil {
		return Report{}, err
	}
	for _, s := range p.search.Shards {
		if err := e.write(s.Path, "text/plain; charset=utf-8", []byte(s.Payload)); err != nil {
			return Report{}, err
		}
	}
	metrics.SetSearchShards(len(p.search.Shards))

	now := b.deps.Clock.Now()
	hasFeed, err := b.writeSEO(e, p, now)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		BuildID:   buildID,
		Records:   len(p.records),
		Dropped:   dropped,
		Pages:     e.pages,
		Redirects: e.redirects,
		Shards:    len(p.search.Shards),
		Assets:    assets,
		BaseURL:   p.baseURL,
		Feed:      hasFeed,
		Generated: now.UTC().Format(time.RFC3339),
		Duration:  time.Since(start),
	}
	metrics.ObserveBuild(report.Duration)
	b.announce(ctx, report, log)
	log.Info("build complete",
		zap.Int("pages", report.Pages),
		zap.Int("shards", report.Shards),
		zap.String("base_url", report.BaseURL),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (b *Builder) plan(meta bundle.Meta, records []*catalog.Record) (plan, error) {
	p := plan{
		siteName: b.cfg.SiteName,
		baseURL:  ResolveBaseURL(b.cfg.BaseURL, meta, b.deps.Env),
		records:  records,
		byID:     make(map[string]*catalog.Record, len(records)),
		facets:   facet.BuildAll(records),
		orders:   ordering.Build(records),
	}
	if meta.SiteName != "" && p.siteName == "" {
		p.siteName = meta.SiteName
	}
	if p.siteName == "" {
		p.siteName = DefaultSiteName
	}
	for _, r := range records {
		p.byID[r.ID] = r
	}
	if err := checkPaths(records, p.facets); err != nil {
		return plan{}, err
	}
	p.related = related.NewResolver(p.facets, b.cfg.RelatedLimit).Resolve(records)

	search, err := b.deps.Compiler.Compile(p.orders.Latest)
	if err != nil {
		return plan{}, fmt.Errorf("compile search index: %w", err)
	}
	p.search = search
	return p, nil
}

// checkPaths rejects any record or facet page path that would leave its
// directory once joined onto the output root. It runs before the output is
// reset.
func checkPaths(records []*catalog.Record, facets facet.Set) error {
	for _, r := range records {
		if !SafePath(r.Path()) {
			return fmt.Errorf("%w: record %q maps to %q", ErrUnsafePath, r.ID, r.Path())
		}
	}
	for _, kind := range facet.Kinds {
		for _, v := range facets.Get(kind).Keys() {
			if rel := facet.Path(kind, v); !SafePath(rel) {
				return fmt.Errorf("%w: %s value %q maps to %q", ErrUnsafePath, kind, v, rel)
			}
		}
	}
	return nil
}

// SafePath reports whether rel is a relative slash path made only of named
// segments.
func SafePath(rel string) bool {
	rel = strings.TrimSuffix(rel, "/")
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, `\`) {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func (b *Builder) writeSEO(e *emitter, p plan, now time.Time) (bool, error) {
	sitemap, err := Sitemap(p.baseURL, e.urls)
	if err != nil {
		return false, err
	}
	if err := e.write("sitemap.xml", "application/xml", sitemap); err != nil {
		return false, err
	}
	if err := e.write("robots.txt", "text/plain; charset=utf-8", Robots(p.baseURL, b.cfg.ShardDir)); err != nil {
		return false, err
	}
	feed, ok, err := Feed(p.baseURL, p.siteName, p.orders.Latest, b.cfg.FeedItems, now)
	if err != nil || !ok {
		return false, err
	}
	if err := e.write("feed.xml", "application/rss+xml", feed); err != nil {
		return false, err
	}
	return true, nil
}

// announce publishes the build event. The artifacts are already written, so
// a failed publish is logged rather than failing the build.
func (b *Builder) announce(ctx context.Context, r Report, log *zap.Logger) {
	if b.deps.Publisher == nil {
		return
	}
	id, err := b.deps.Publisher.Publish(ctx, EventBuildCompleted, r)
	if err != nil {
		log.Warn("build event publish failed", zap.Error(err))
		return
	}
	log.Debug("build event published", zap.String("message_id", id))
}

// emitter writes pages and remembers their paths for the sitemap.
type emitter struct {
	ctx      context.Context
	out      storage.BlobStore
	renderer Renderer
	siteName string
	baseURL  string

	urls      []string
	seen      map[string]bool
	pages     int
	redirects int
}

func newEmitter(ctx context.Context, out storage.BlobStore, r Renderer, siteName, baseURL string) *emitter {
	return &emitter{
		ctx:      ctx,
		out:      out,
		renderer: r,
		siteName: siteName,
		baseURL:  baseURL,
		seen:     map[string]bool{},
	}
}

// page renders pageType at the directory path rel ("" is the site root).
func (e *emitter) page(pageType, rel string, data map[string]any) error {
	root := RootPath(rel)
	data["site_name"] = e.siteName
	data["base_url"] = e.baseURL
	data["canonical_url"] = ""
	if e.baseURL != "" {
		data["canonical_url"] = e.baseURL + rel
	}
	data["root_path"] = root
	data["css_path"] = root + "assets/style.css"
	if _, ok := data["nav_active"]; !ok {
		data["nav_active"] = ""
	}
	body, err := e.renderer.Render(pageType, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", rel, err)
	}
	if err := e.write(rel+"index.html", "text/html; charset=utf-8", body); err != nil {
		return err
	}
	if !e.seen[rel] {
		e.seen[rel] = true
		e.urls = append(e.urls, rel)
	}
	e.pages++
	metrics.ObservePage(pageType)
	return nil
}

// redirect writes a meta-refresh page at rel pointing at target, which is
// relative to rel. Redirects stay out of the sitemap.
func (e *emitter) redirect(rel, target string) error {
	if err := e.write(rel+"index.html", "text/html; charset=utf-8", RedirectHTML(target)); err != nil {
		return err
	}
	e.redirects++
	return nil
}

func (e *emitter) write(name, contentType string, body []byte) error {
	if _, err := e.out.PutObject(e.ctx, name, contentType, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
