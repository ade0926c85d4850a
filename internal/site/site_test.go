package site

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-catalog/internal/bundle"
	"github.com/JakeFAU/review-catalog/internal/catalog"
	"github.com/JakeFAU/review-catalog/internal/facet"
	memorypublisher "github.com/JakeFAU/review-catalog/internal/publisher/memory"
	"github.com/JakeFAU/review-catalog/internal/render"
	"github.com/JakeFAU/review-catalog/internal/searchindex"
	"github.com/JakeFAU/review-catalog/internal/storage/local"
	"github.com/JakeFAU/review-catalog/internal/storage/memory"
)

type staticSource struct {
	b   bundle.Bundle
	err error
}

func (s staticSource) Load(context.Context) (bundle.Bundle, error) { return s.b, s.err }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{}

func (fixedIDs) NewID() (string, error) { return "build-1", nil }

type call struct {
	pageType string
	data     map[string]any
}

// recordingRenderer writes a small text body and keeps every context.
type recordingRenderer struct {
	mu    sync.Mutex
	calls []call
	fail  string
}

func (r *recordingRenderer) Render(pageType string, data map[string]any) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pageType == r.fail {
		return nil, errors.New("boom")
	}
	r.calls = append(r.calls, call{pageType: pageType, data: data})
	return []byte(fmt.Sprintf("%s|%v|%v", pageType, data["page_title"], data["root_path"])), nil
}

func (r *recordingRenderer) byTitle(title string) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.data["page_title"] == title {
			return c.data
		}
	}
	return nil
}

var buildTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixtureRows() []map[string]any {
	return []map[string]any{
		{
			"id": "a1", "title": "Alpha", "release_date": "2024-03-01",
			"people": []any{"Jane"}, "tags": []any{"Drama"}, "maker": "Acme",
			"rank": 2, "sample_video": "https://v.example/1.mp4", "review_average": 4.5,
		},
		{
			"id": "a2", "title": "Beta", "release_date": "2024-02-01",
			"people": []any{"Jane", "Kim"}, "tags": []any{"Drama", "Comedy"}, "maker": "Acme",
			"series": "S1", "rank": 1,
			"sample_images_small": []any{"https://img.example/1.jpg", "https://img.example/2.jpg"},
		},
		{
			"id": "a3", "title": "Gamma", "release_date": "2024-01-01",
			"people": []any{"Kim"}, "tags": []any{"Comedy"}, "maker": "Beta Works",
		},
		{"title": "no id"},
	}
}

type fixture struct {
	builder   *Builder
	out       *memory.BlobStore
	renderer  *recordingRenderer
	publisher *memorypublisher.Publisher
}

func newFixture(t *testing.T, cfg Config, src bundle.Source) fixture {
	t.Helper()
	out := memory.NewBlobStore()
	rr := &recordingRenderer{}
	pub := memorypublisher.New()
	clock := fixedClock{t: buildTime}
	compiler := searchindex.NewCompiler(searchindex.Config{}, searchindex.NewCodec(""), clock,
		func() (string, error) { return "abc123", nil })
	if cfg.PerPage == 0 {
		cfg.PerPage = 2
	}
	b, err := New(cfg, Deps{
		Source:    src,
		Renderer:  rr,
		Output:    out,
		Compiler:  compiler,
		Publisher: pub,
		IDs:       fixedIDs{},
		Clock:     clock,
		Env:       func(string) (string, bool) { return "", false },
	})
	require.NoError(t, err)
	return fixture{builder: b, out: out, renderer: rr, publisher: pub}
}

func body(t *testing.T, out *memory.BlobStore, path string) string {
	t.Helper()
	b, ok := out.Get(path)
	require.True(t, ok, "missing %s", path)
	return string(b)
}

func TestBuildEmitsFullArtifactSet(t *testing.T) {
	t.Parallel()

	src := staticSource{b: bundle.Bundle{Meta: bundle.Meta{SiteName: "Reviews", SiteURL: "https://example.com"}, Rows: fixtureRows()}}
	f := newFixture(t, Config{}, src)

	report, err := f.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "build-1", report.BuildID)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, 1, report.Shards)
	assert.Equal(t, "https://example.com/", report.BaseURL)
	assert.True(t, report.Feed)

	for _, p := range []string{
		"index.html",
		"pages/2/index.html",
		"rank/index.html",
		"rank/pages/2/index.html",
		"reviews/index.html",
		"reviews/pages/2/index.html",
		"movies/index.html",
		"images/index.html",
		"records/a1/index.html",
		"records/a2/index.html",
		"records/a3/index.html",
		"people/index.html",
		"people/Jane/index.html",
		"people/Kim/index.html",
		"tags/Drama/index.html",
		"tags/Comedy/index.html",
		"makers/Acme/index.html",
		"makers/Beta_Works/index.html",
		"series/S1/index.html",
		"featured/index.html",
		"search/index.html",
		"assets/_search_shards/wi_000_abc123.dat",
		"sitemap.xml",
		"robots.txt",
		"feed.xml",
	} {
		_, ok := f.out.Get(p)
		assert.True(t, ok, "missing %s", p)
	}
	_, ok := f.out.Get("movies/pages/2/index.html")
	assert.False(t, ok)

	assert.Equal(t, "index|Top|", body(t, f.out, "index.html"))
	assert.Equal(t, "detail|Alpha|../../", body(t, f.out, "records/a1/index.html"))
	assert.Contains(t, body(t, f.out, "pages/1/index.html"), `url=../../"`)
	assert.Contains(t, body(t, f.out, "featured/rank/index.html"), `url=../../rank/"`)
	assert.Contains(t, body(t, f.out, "featured/sample-movies/index.html"), `url=../../movies/"`)
	assert.Contains(t, body(t, f.out, "featured/sample-images/index.html"), `url=../../images/"`)
	assert.Equal(t, 4, report.Redirects)

	sitemap := body(t, f.out, "sitemap.xml")
	assert.Contains(t, sitemap, "<loc>https://example.com/</loc>")
	assert.Contains(t, sitemap, "<loc>https://example.com/records/a2/</loc>")
	assert.NotContains(t, sitemap, "pages/1/")
	assert.Equal(t, report.Pages, strings.Count(sitemap, "<loc>"))

	assert.Contains(t, body(t, f.out, "robots.txt"), "Sitemap: https://example.com/sitemap.xml")
	assert.Equal(t, "text/html; charset=utf-8", f.out.ContentType("index.html"))

	msgs := f.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, EventBuildCompleted, msgs[0].Kind)
	assert.Equal(t, report, msgs[0].Payload)
}

func TestBuildListingContexts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, staticSource{b: bundle.Bundle{Rows: fixtureRows()}})
	_, err := f.builder.Build(context.Background())
	require.NoError(t, err)

	home := f.renderer.byTitle("Top")
	require.NotNil(t, home)
	pg := home["pager"].(*Pager)
	assert.Equal(t, Pager{Page: 1, Total: 2, Next: "pages/2/", HasNext: true}, *pg)
	assert.Equal(t, "", home["canonical_url"])
	assert.Equal(t, "assets/style.css", home["css_path"])
	assert.Equal(t, "latest", home["sort_id"])

	second := f.renderer.byTitle("All records 2/2")
	require.NotNil(t, second)
	pg = second["pager"].(*Pager)
	assert.True(t, pg.HasPrev)
	assert.Equal(t, "", pg.Prev)
	assert.False(t, pg.HasNext)
	assert.Equal(t, "../../", second["root_path"])

	rank2 := f.renderer.byTitle("Ranking 2/2")
	require.NotNil(t, rank2)
	assert.Equal(t, "rank/", rank2["pager"].(*Pager).Prev)
	assert.Equal(t, 3, rank2["rank_start"])

	person := f.renderer.byTitle("People: Jane")
	require.NotNil(t, person)
	assert.NotContains(t, person, "pager")
	assert.Equal(t, "people", person["nav_active"])

	detail := f.renderer.byTitle("Beta")
	require.NotNil(t, detail)
	assert.Equal(t, "16 / 9", detail["video_aspect_ratio"])
	assert.Len(t, detail["related_person"], 1)

	search := f.renderer.byTitle("Search")
	require.NotNil(t, search)
	assert.Equal(t, "../assets/search.js", search["js_path"])
	var manifest searchindex.Manifest
	require.NoError(t, searchindex.NewCodec("").Decode(search["search_manifest_b64"].(string), &manifest))
	assert.Equal(t, 3, manifest.Total)
}

func TestBuildWithoutBaseURLDegrades(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, staticSource{b: bundle.Bundle{Rows: fixtureRows()}})
	report, err := f.builder.Build(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.BaseURL)
	assert.False(t, report.Feed)
	_, ok := f.out.Get("feed.xml")
	assert.False(t, ok)
	assert.NotContains(t, body(t, f.out, "sitemap.xml"), "<urlset")
	assert.NotContains(t, body(t, f.out, "robots.txt"), "Sitemap:")
}

func TestBuildMissingBundleLeavesOutputUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, staticSource{err: bundle.ErrNotFound})
	_, err := f.out.PutObject(context.Background(), "index.html", "text/html", strings.NewReader("previous"))
	require.NoError(t, err)

	_, err = f.builder.Build(context.Background())
	require.ErrorIs(t, err, bundle.ErrNotFound)
	assert.Equal(t, "previous", body(t, f.out, "index.html"))
	assert.Empty(t, f.publisher.Messages())
}

func TestBuildRenderFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, staticSource{b: bundle.Bundle{Rows: fixtureRows()}})
	f.renderer.fail = render.PageSearch
	_, err := f.builder.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search/")
}

func TestBuildCopiesAssets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img", "logo.png"), []byte("png"), 0o600))

	f := newFixture(t, Config{AssetsDir: dir}, staticSource{b: bundle.Bundle{Rows: fixtureRows()}})
	report, err := f.builder.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Assets)
	assert.Equal(t, "body{}", body(t, f.out, "assets/style.css"))
	assert.Equal(t, "image/png", f.out.ContentType("assets/img/logo.png"))
}

func newLocalBuilder(t *testing.T, root string, rows []map[string]any) *Builder {
	t.Helper()
	out, err := local.New(local.Config{BaseDir: root})
	require.NoError(t, err)
	clock := fixedClock{t: buildTime}
	b, err := New(Config{PerPage: 2}, Deps{
		Source:   staticSource{b: bundle.Bundle{Rows: rows}},
		Renderer: &recordingRenderer{},
		Output:   out,
		Compiler: searchindex.NewCompiler(searchindex.Config{}, searchindex.NewCodec(""), clock,
			func() (string, error) { return "abc123", nil }),
		IDs:   fixedIDs{},
		Clock: clock,
		Env:   func(string) (string, bool) { return "", false },
	})
	require.NoError(t, err)
	return b
}

func TestBuildDotDotFacetValueGetsItsOwnPage(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	b := newLocalBuilder(t, root, []map[string]any{{"id": "a1", "tags": []any{".."}}})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	home, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "index|Top|", string(home))

	tag, err := os.ReadFile(filepath.Join(root, "tags", "_", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "index|Tags: ..|../../", string(tag))
}

func TestBuildDropsTraversalIDs(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	root := filepath.Join(parent, "site", "docs")
	b := newLocalBuilder(t, root, []map[string]any{{"id": "ok"}, {"id": "../.."}})
	report, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Records)
	assert.Equal(t, 1, report.Dropped)
	assert.FileExists(t, filepath.Join(root, "records", "ok", "index.html"))
	assert.NoFileExists(t, filepath.Join(parent, "index.html"))
	assert.NoFileExists(t, filepath.Join(parent, "site", "index.html"))
}

func TestCheckPathsRejectsEscapes(t *testing.T) {
	t.Parallel()

	records := []*catalog.Record{{ID: "ok"}, {ID: "../.."}}
	err := checkPaths(records, facet.BuildAll(records[:1]))
	require.ErrorIs(t, err, ErrUnsafePath)
	assert.Contains(t, err.Error(), `"../.."`)

	require.NoError(t, checkPaths(records[:1], facet.BuildAll(records[:1])))
}

func TestSafePath(t *testing.T) {
	t.Parallel()

	for rel, want := range map[string]bool{
		"records/a1/":      true,
		"tags/_/":          true,
		"pages/2/":         true,
		"":                 false,
		"/abs/":            false,
		"records/../":      false,
		"tags/./":          false,
		"records//":        false,
		`records\a1/`:      false,
		"records/../../x/": false,
	} {
		assert.Equal(t, want, SafePath(rel), "path %q", rel)
	}
}

func TestBuildEmptyCatalog(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, staticSource{b: bundle.Bundle{}})
	report, err := f.builder.Build(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Records)
	assert.Zero(t, report.Shards)
	for _, p := range []string{"index.html", "rank/index.html", "movies/index.html", "people/index.html", "search/index.html"} {
		_, ok := f.out.Get(p)
		assert.True(t, ok, "missing %s", p)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}
