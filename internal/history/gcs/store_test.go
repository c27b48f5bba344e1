package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

func newTestStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "state", Object: "history.json"})
	require.NoError(t, err)
	return store
}

func TestLoadMissingObject(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestLoadDecodesObject(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/state/history.json"), r.URL.Path)
		fmt.Fprint(w, `["https://a/1.pdf","https://a/2.pdf"]`)
	}))

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/1.pdf", "https://a/2.pdf"}, set.Sorted())
}

func TestSaveUploadsSortedJSON(t *testing.T) {
	var body string
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/state/o")
		assert.Equal(t, "history.json", r.URL.Query().Get("name"))
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		fmt.Fprint(w, `{"bucket":"state","name":"history.json"}`)
	}))

	err := store.Save(context.Background(), gazette.NewHistorySet("https://b/2.pdf", "https://a/1.pdf"))
	require.NoError(t, err)
	assert.Contains(t, body, "[\n  \"https://a/1.pdf\",\n  \"https://b/2.pdf\"\n]")
}

func TestSaveServerError(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	require.Error(t, store.Save(context.Background(), gazette.NewHistorySet("x")))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b", Object: "o"})
	require.Error(t, err)
}
