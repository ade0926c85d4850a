package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler, prefix string) *BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "site-bucket", Prefix: prefix}, nil)
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"}, nil)
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{}, nil)
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	s := &BlobStore{prefix: "preview"}
	assert.Equal(t, "preview/records/A/index.html", s.ObjectName("records/A/index.html"))
	s.prefix = ""
	assert.Equal(t, "index.html", s.ObjectName("/index.html"))
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/site-bucket/o")
		assert.Equal(t, "preview/search/index.html", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "<html>search</html>")
		assert.Contains(t, string(body), "text/html")

		_, _ = io.WriteString(w, `{"name":"preview/search/index.html","bucket":"site-bucket"}`)
	})
	store := newTestStore(t, handler, "/preview/")

	uri, err := store.PutObject(context.Background(), "search/index.html", "text/html", bytes.NewReader([]byte("<html>search</html>")))
	require.NoError(t, err)
	assert.Equal(t, "gs://site-bucket/preview/search/index.html", uri)
}

func TestResetDeletesPrefixedObjects(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var deleted []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "preview/", r.URL.Query().Get("prefix"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"kind": "storage#objects",
				"items": []map[string]any{
					{"name": "preview/index.html", "bucket": "site-bucket"},
					{"name": "preview/feed.xml", "bucket": "site-bucket"},
				},
			})
		case http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, r.URL.Path[strings.LastIndex(r.URL.Path, "/o/")+3:])
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	store := newTestStore(t, handler, "preview")

	require.NoError(t, store.Reset(context.Background()))
	assert.ElementsMatch(t, []string{"preview/index.html", "preview/feed.xml"}, deleted)
}
