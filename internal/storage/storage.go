// Package storage defines where built site artifacts are written. The build
// writes through BlobStore so the output tree can live on local disk, in a
// GCS bucket, or in memory for tests.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// BlobStore receives site artifacts keyed by their slash-separated path
// relative to the output root.
type BlobStore interface {
	// PutObject writes the object and returns a URI for it.
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	// Reset removes every object previously written under the store's root.
	Reset(ctx context.Context) error
}

// Multi writes to a primary store and mirrors every write to the others.
// The URI of the primary is returned.
type Multi struct {
	primary BlobStore
	mirrors []BlobStore
}

// NewMulti builds a Multi. Nil mirrors are skipped.
func NewMulti(primary BlobStore, mirrors ...BlobStore) *Multi {
	m := &Multi{primary: primary}
	for _, s := range mirrors {
		if s != nil {
			m.mirrors = append(m.mirrors, s)
		}
	}
	return m
}

// PutObject implements BlobStore.
func (m *Multi) PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	if len(m.mirrors) == 0 {
		return m.primary.PutObject(ctx, path, contentType, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", path, err)
	}
	uri, err := m.primary.PutObject(ctx, path, contentType, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	for _, s := range m.mirrors {
		if _, err := s.PutObject(ctx, path, contentType, bytes.NewReader(data)); err != nil {
			return "", fmt.Errorf("mirror %s: %w", path, err)
		}
	}
	return uri, nil
}

// Reset implements BlobStore.
func (m *Multi) Reset(ctx context.Context) error {
	errs := []error{m.primary.Reset(ctx)}
	for _, s := range m.mirrors {
		errs = append(errs, s.Reset(ctx))
	}
	return errors.Join(errs...)
}
