package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a testify mock of BlobStore.
type MockBlobStore struct {
	mock.Mock
}

// PutObject records the call. The reader is drained so callers see a
// consumed body, as with a real store.
func (m *MockBlobStore) PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	args := m.Called(ctx, path, contentType)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// Reset records the call.
func (m *MockBlobStore) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}
