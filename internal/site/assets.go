package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/storage"
)

// copyAssets mirrors dir into assets/ of the output. A missing directory is
// not an error; the site then relies on whatever the templates link.
func copyAssets(ctx context.Context, out storage.BlobStore, dir string, log *zap.Logger) (int, error) {
	if dir == "" {
		return 0, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		log.Warn("assets directory not found, skipping copy", zap.String("dir", dir))
		return 0, nil
	}
	n := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		name := path.Join("assets", filepath.ToSlash(rel))
		if _, err := out.PutObject(ctx, name, contentType(name), f); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("copy assets: %w", err)
	}
	log.Debug("assets copied", zap.Int("files", n))
	return n, nil
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
