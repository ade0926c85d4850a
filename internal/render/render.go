// Package render turns page contexts into HTML with html/template.
//
// Each page type maps to one template file. Files whose names start with an
// underscore are partials shared by every page. A template directory on disk
// overrides the embedded defaults file by file.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/facet"
)

// Page types understood by the renderer.
const (
	PageIndex    = "index"
	PageList     = "list"
	PageDetail   = "detail"
	PageSearch   = "search"
	PageFeatured = "featured"
)

// ErrUnknownPage is returned for a page type with no template.
var ErrUnknownPage = errors.New("unknown page type")

var files = map[string]string{
	PageIndex:    "index.html",
	PageList:     "list_works.html",
	PageDetail:   "page.html",
	PageSearch:   "search.html",
	PageFeatured: "featured.html",
}

//go:embed templates/*.html
var embedded embed.FS

// Renderer holds one parsed template set per page type.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the templates. Files present in dir win over the embedded
// defaults; an empty or missing dir uses the defaults alone.
func New(dir string, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("open embedded templates: %w", err)
	}
	var overrides fs.FS
	if dir != "" {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			overrides = os.DirFS(dir)
		} else {
			logger.Warn("template directory not found, using defaults", zap.String("dir", dir))
		}
	}

	src := layered{top: overrides, base: defaults}
	partials, err := src.partials()
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for page, name := range files {
		t := template.New(name).Funcs(funcs)
		for _, p := range partials {
			if err := parse(t.New(p), src, p); err != nil {
				return nil, err
			}
		}
		if err := parse(t, src, name); err != nil {
			return nil, err
		}
		r.pages[page] = t
	}
	return r, nil
}

// Render executes the template for pageType against data.
func (r *Renderer) Render(pageType string, data map[string]any) ([]byte, error) {
	t, ok := r.pages[pageType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, pageType)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, files[pageType], data); err != nil {
		return nil, fmt.Errorf("render %s: %w", pageType, err)
	}
	return buf.Bytes(), nil
}

func parse(t *template.Template, src layered, name string) error {
	body, err := src.read(name)
	if err != nil {
		return fmt.Errorf("read template %s: %w", name, err)
	}
	if _, err := t.Parse(string(body)); err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}
	return nil
}

var funcs = template.FuncMap{
	"slugify": facet.Slug,
	"join":    strings.Join,
	"rating": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"deref": func(v *int) int {
		if v == nil {
			return 0
		}
		return *v
	},
	"add":  func(a, b int) int { return a + b },
	"dict": dict,
	// css marks computed style values such as "16 / 9" as safe.
	"css": func(s string) template.CSS { return template.CSS(s) },
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict needs key/value pairs")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		out[key] = pairs[i+1]
	}
	return out, nil
}

// layered reads from top first and falls back to base.
type layered struct {
	top  fs.FS
	base fs.FS
}

func (l layered) read(name string) ([]byte, error) {
	if l.top != nil {
		b, err := fs.ReadFile(l.top, name)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return fs.ReadFile(l.base, name)
}

func (l layered) partials() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, fsys := range []fs.FS{l.top, l.base} {
		if fsys == nil {
			continue
		}
		names, err := fs.Glob(fsys, "_*.html")
		if err != nil {
			return nil, fmt.Errorf("list partials: %w", err)
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out, nil
}
