package blobstore

import (
	"bytes"
	"container/list"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// CachingStore wraps a Store and keeps recently read blobs in memory, up to
// a byte capacity. Blobs are immutable, so Put and Delete only need to drop
// the cached copy.
type CachingStore struct {
	inner Store

	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[string]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type cachedBlob struct {
	name string
	data []byte
}

var _ Store = (*CachingStore)(nil)

// NewCachingStore creates a CachingStore holding at most capacity bytes.
func NewCachingStore(inner Store, capacity int64) *CachingStore {
	return &CachingStore{
		inner:     inner,
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Open returns the cached blob or reads it through.
func (s *CachingStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := s.get(ctx, name)
	if err != nil {
		return nil, err
	}
	return &memoryBlob{Reader: bytes.NewReader(data)}, nil
}

func (s *CachingStore) get(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	if ent, ok := s.items[name]; ok {
		s.evictList.MoveToFront(ent)
		s.mu.Unlock()
		s.hits.Add(1)
		return ent.Value.(*cachedBlob).data, nil
	}
	s.mu.Unlock()
	s.misses.Add(1)

	data, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	s.set(name, data)
	return data, nil
}

func (s *CachingStore) set(name string, data []byte) {
	n := int64(len(data))
	if n > s.capacity {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.items[name]; ok {
		s.evictList.MoveToFront(ent)
		return
	}
	for s.size+n > s.capacity {
		s.removeElement(s.evictList.Back())
	}
	s.items[name] = s.evictList.PushFront(&cachedBlob{name: name, data: data})
	s.size += n
}

func (s *CachingStore) removeElement(ent *list.Element) {
	b := ent.Value.(*cachedBlob)
	s.evictList.Remove(ent)
	delete(s.items, b.name)
	s.size -= int64(len(b.data))
}

func (s *CachingStore) invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.items[name]; ok {
		s.removeElement(ent)
	}
}

// Prefetch reads the named blobs into the cache with up to parallelism
// concurrent reads.
func (s *CachingStore) Prefetch(ctx context.Context, names []string, parallelism int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, parallelism))
	for _, name := range names {
		g.Go(func() error {
			_, err := s.get(gctx, name)
			return err
		})
	}
	return g.Wait()
}

// Put writes through and drops the cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete deletes through and drops the cached copy.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List is passed through.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Size returns the cached bytes.
func (s *CachingStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Stats returns cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}
