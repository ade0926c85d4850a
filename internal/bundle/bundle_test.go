package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

func rows(n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := range n {
		out = append(out, map[string]any{
			"id":     fmt.Sprintf("W%03d", i),
			"title":  "タイトル",
			"rank":   json.Number(fmt.Sprint(i + 1)),
			"custom": map[string]any{"kept": true},
		})
	}
	return out
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d := NewDir(dir, fixedClock{}, nil)
	in := Bundle{Meta: Meta{SiteName: "Reviews", SiteURL: "https://example.com/", ChunkSize: 2}, Rows: rows(5)}
	require.NoError(t, d.Save(context.Background(), in))

	for _, name := range []string{"works_000.json", "works_001.json", "works_002.json", ManifestFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	out, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in.Meta, out.Meta)
	assert.Equal(t, in.Rows, out.Rows)

	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"updated_at": "2024-05-06T07:08:09Z"`)
	assert.Contains(t, string(raw), `"total": 5`)
}

func TestSaveRemovesStaleChunksAndLegacy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d := NewDir(dir, nil, nil)
	require.NoError(t, d.Save(context.Background(), Bundle{Meta: Meta{ChunkSize: 1}, Rows: rows(3)}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacyFile), []byte(`{"works":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	require.NoError(t, d.Save(context.Background(), Bundle{Meta: Meta{ChunkSize: 10}, Rows: rows(3)}))
	assert.FileExists(t, filepath.Join(dir, "works_000.json"))
	assert.NoFileExists(t, filepath.Join(dir, "works_001.json"))
	assert.NoFileExists(t, filepath.Join(dir, "works_002.json"))
	assert.NoFileExists(t, filepath.Join(dir, LegacyFile))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestLoadLegacyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	legacyJSON := `{"site_name":"Old","base_url":"https://old.example/","works":[{"id":"A","price_min":1200}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacyFile), []byte(legacyJSON), 0o644))

	b, err := NewDir(dir, nil, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Old", b.Meta.SiteName)
	assert.Equal(t, "https://old.example/", b.Meta.BaseURL)
	require.Len(t, b.Rows, 1)
	assert.Equal(t, json.Number("1200"), b.Rows[0]["price_min"])
}

func TestLoadMissingBundle(t *testing.T) {
	t.Parallel()

	_, err := NewDir(t.TempDir(), nil, nil).Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMissingChunkFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{"chunks":["works_000.json"]}`), 0o644))
	_, err := NewDir(dir, nil, nil).Load(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCorruptManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{`), 0o644))
	_, err := NewDir(dir, nil, nil).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
