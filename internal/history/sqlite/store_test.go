package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestLoadEmpty(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestSaveIsAdditiveAndDurable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, path := newStore(t)

	require.NoError(t, store.Save(ctx, gazette.NewHistorySet("https://a/1.pdf")))
	require.NoError(t, store.Save(ctx, gazette.NewHistorySet("https://a/1.pdf", "https://a/2.pdf")))
	require.NoError(t, store.Close())

	reopened, err := New(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	set, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/1.pdf", "https://a/2.pdf"}, set.Sorted())
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "")
	require.Error(t, err)
}
