package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "gazettes/abc.pdf", "application/pdf", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://gazettes/abc.pdf", uri)

	payload[0] = 'C'
	stored, ok := store.Get("gazettes/abc.pdf")
	require.True(t, ok)
	assert.Equal(t, "content", string(stored))
	assert.Equal(t, 1, store.Len())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)
}
