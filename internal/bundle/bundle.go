// Package bundle reads and writes the on-disk record set: a manifest naming
// numbered chunk files, or the older single works.json file.
package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a directory holds neither a manifest nor the
// legacy file.
var ErrNotFound = errors.New("record bundle not found")

// File names inside a bundle directory.
const (
	ManifestFile = "works_manifest.json"
	LegacyFile   = "works.json"

	DefaultChunkSize = 500
	manifestVersion  = 1
)

var chunkName = regexp.MustCompile(`^works_\d{3,}\.json$`)

// Meta is the site metadata carried alongside the records.
type Meta struct {
	SiteName  string `json:"site_name,omitempty"`
	SiteURL   string `json:"site_url,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}

// Bundle is a loaded record set. Rows stay loosely typed so fields the
// normalizer does not know survive a load/save cycle.
type Bundle struct {
	Meta Meta
	Rows []map[string]any
}

// Source loads a bundle.
type Source interface {
	Load(ctx context.Context) (Bundle, error)
}

// Saver persists a bundle.
type Saver interface {
	Save(ctx context.Context, b Bundle) error
}

type manifest struct {
	Meta
	Version   int      `json:"version"`
	Total     int      `json:"total"`
	Chunks    []string `json:"chunks"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

type legacy struct {
	Meta
	Works []map[string]any `json:"works"`
}

// Clock stamps saved manifests.
type Clock interface {
	Now() time.Time
}

// Dir is a bundle stored in a local directory.
type Dir struct {
	path   string
	clock  Clock
	logger *zap.Logger
}

// NewDir returns a Dir rooted at path.
func NewDir(path string, clock Clock, logger *zap.Logger) *Dir {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dir{path: path, clock: clock, logger: logger}
}

// Path returns the bundle directory.
func (d *Dir) Path() string { return d.path }

// Load reads the manifest and its chunks, falling back to the legacy file.
func (d *Dir) Load(ctx context.Context) (Bundle, error) {
	var m manifest
	found, err := readJSON(filepath.Join(d.path, ManifestFile), &m)
	if err != nil {
		return Bundle{}, fmt.Errorf("read bundle manifest: %w", err)
	}
	if found {
		rows := make([]map[string]any, 0, m.Total)
		for _, name := range m.Chunks {
			if err := ctx.Err(); err != nil {
				return Bundle{}, fmt.Errorf("load bundle: %w", err)
			}
			var chunk []map[string]any
			ok, err := readJSON(filepath.Join(d.path, filepath.Base(name)), &chunk)
			if err != nil {
				return Bundle{}, fmt.Errorf("read bundle chunk %s: %w", name, err)
			}
			if !ok {
				return Bundle{}, fmt.Errorf("bundle chunk %s: %w", name, fs.ErrNotExist)
			}
			rows = append(rows, chunk...)
		}
		d.logger.Debug("bundle loaded",
			zap.String("dir", d.path),
			zap.Int("chunks", len(m.Chunks)),
			zap.Int("rows", len(rows)),
		)
		return Bundle{Meta: m.Meta, Rows: rows}, nil
	}

	var l legacy
	found, err = readJSON(filepath.Join(d.path, LegacyFile), &l)
	if err != nil {
		return Bundle{}, fmt.Errorf("read legacy bundle: %w", err)
	}
	if !found {
		return Bundle{}, fmt.Errorf("%s: %w", d.path, ErrNotFound)
	}
	d.logger.Info("legacy bundle loaded", zap.String("dir", d.path), zap.Int("rows", len(l.Works)))
	return Bundle{Meta: l.Meta, Rows: l.Works}, nil
}

// Save writes chunk files of b.Meta.ChunkSize rows (DefaultChunkSize when
// zero) and the manifest, then removes stale chunks and the legacy file.
func (d *Dir) Save(ctx context.Context, b Bundle) error {
	size := b.Meta.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	var names []string
	for i, start := 0, 0; start < len(b.Rows); i, start = i+1, start+size {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("save bundle: %w", err)
		}
		end := min(start+size, len(b.Rows))
		name := fmt.Sprintf("works_%03d.json", i)
		if err := writeJSON(filepath.Join(d.path, name), b.Rows[start:end]); err != nil {
			return fmt.Errorf("write bundle chunk %s: %w", name, err)
		}
		names = append(names, name)
	}

	m := manifest{
		Meta:    b.Meta,
		Version: manifestVersion,
		Total:   len(b.Rows),
		Chunks:  append([]string{}, names...),
	}
	m.ChunkSize = size
	if d.clock != nil {
		m.UpdatedAt = d.clock.Now().UTC().Format(time.RFC3339)
	}
	if err := writeJSON(filepath.Join(d.path, ManifestFile), m); err != nil {
		return fmt.Errorf("write bundle manifest: %w", err)
	}
	return d.cleanup(names)
}

func (d *Dir) cleanup(keep []string) error {
	wanted := make(map[string]struct{}, len(keep))
	for _, n := range keep {
		wanted[n] = struct{}{}
	}
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("list bundle dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		_, keepIt := wanted[name]
		if name == LegacyFile || (chunkName.MatchString(name) && !keepIt) {
			if err := os.Remove(filepath.Join(d.path, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", name, err)
			}
			d.logger.Debug("bundle file removed", zap.String("file", name))
		}
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return true, err
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
