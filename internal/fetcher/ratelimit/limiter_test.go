package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.com/a.pdf"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://test.com/b.pdf"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.com/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.com/1"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(ctx, "https://a.com/1"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.com/1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://a.com/2"))
}

type countingFetcher struct{ calls int }

func (c *countingFetcher) Fetch(context.Context, string, time.Duration) ([]byte, error) {
	c.calls++
	return []byte("pdf"), nil
}

func TestWrapDelegates(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{}
	f := Wrap(next, New(Config{}))
	body, err := f.Fetch(context.Background(), "https://a.com/x.pdf", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), body)
	assert.Equal(t, 1, next.calls)
}

func TestWrapSkipsFetchWhenContextDone(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{}
	l := New(Config{RPS: 0.1, Burst: 1})
	f := Wrap(next, l)
	_, err := f.Fetch(context.Background(), "https://a.com/1", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, "https://a.com/2", time.Second)
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}
