package blobstore

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sync"
)

// MemoryStore keeps blobs in a map. It suits tests and volumes generated
// in-process. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	bytes int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open returns a reader over the stored bytes. The reader is Sized.
func (m *MemoryStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	// Put never mutates a stored slice, so readers may share it.
	return &memoryBlob{Reader: bytes.NewReader(data)}, nil
}

// Put stores a copy of data under name, replacing any previous blob.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	blob := bytes.Clone(data)
	if blob == nil {
		blob = []byte{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += int64(len(blob)) - int64(len(m.blobs[name]))
	m.blobs[name] = blob
	return nil
}

// Delete removes name. Missing blobs are ignored.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes -= int64(len(m.blobs[name]))
	delete(m.blobs, name)
	return nil
}

// List returns the sorted names below prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if hasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Len returns the number of blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Bytes returns the total stored size, for example the compressed size of
// a paged volume.
func (m *MemoryStore) Bytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}

type memoryBlob struct {
	*bytes.Reader
}

func (b *memoryBlob) Close() error { return nil }
