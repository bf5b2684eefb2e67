package blobstore

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	Store
	opens atomic.Int64
}

func (c *countingStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	c.opens.Add(1)
	return c.Store.Open(ctx, name)
}

func TestCachingStore_HitsAvoidInnerReads(t *testing.T) {
	ctx := t.Context()
	inner := &countingStore{Store: NewMemoryStore()}
	require.NoError(t, inner.Put(ctx, "a", []byte("aaaa")))

	s := NewCachingStore(inner, 100)
	for i := 0; i < 3; i++ {
		got, err := ReadAll(ctx, s, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("aaaa"), got)
	}
	assert.Equal(t, int64(1), inner.opens.Load())
	hits, misses := s.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachingStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := t.Context()
	inner := &countingStore{Store: NewMemoryStore()}
	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, inner.Put(ctx, n, []byte("0123456789")))
	}

	s := NewCachingStore(inner, 20)
	_, err := ReadAll(ctx, s, "a")
	require.NoError(t, err)
	_, err = ReadAll(ctx, s, "b")
	require.NoError(t, err)
	_, err = ReadAll(ctx, s, "a")
	require.NoError(t, err)
	_, err = ReadAll(ctx, s, "c") // evicts b
	require.NoError(t, err)
	assert.Equal(t, int64(20), s.Size())

	_, err = ReadAll(ctx, s, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), inner.opens.Load())
	_, err = ReadAll(ctx, s, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(4), inner.opens.Load())
}

func TestCachingStore_PutInvalidates(t *testing.T) {
	ctx := t.Context()
	s := NewCachingStore(NewMemoryStore(), 100)
	require.NoError(t, s.Put(ctx, "x", []byte("old")))
	_, err := ReadAll(ctx, s, "x")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "x", []byte("new")))
	got, err := ReadAll(ctx, s, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)

	require.NoError(t, s.Delete(ctx, "x"))
	_, err = ReadAll(ctx, s, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachingStore_Prefetch(t *testing.T) {
	ctx := t.Context()
	inner := &countingStore{Store: NewMemoryStore()}
	names := []string{"l2/0", "l2/1", "l2/2", "l2/3"}
	for _, n := range names {
		require.NoError(t, inner.Put(ctx, n, []byte(n)))
	}

	s := NewCachingStore(inner, 1<<10)
	require.NoError(t, s.Prefetch(ctx, names, 2))
	assert.Equal(t, int64(4), inner.opens.Load())

	for _, n := range names {
		got, err := ReadAll(ctx, s, n)
		require.NoError(t, err)
		assert.Equal(t, []byte(n), got)
	}
	assert.Equal(t, int64(4), inner.opens.Load())

	assert.ErrorIs(t, s.Prefetch(ctx, []string{"missing"}, 2), ErrNotFound)
}
