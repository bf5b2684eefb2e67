package mmap

import (
	"errors"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for empty or negative anonymous mappings
	// and for slices that do not fit.
	ErrInvalidSize = errors.New("mmap: invalid size")
)

// Mapping is memory mapped outside the Go heap. It is unmapped by Close.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func() error
}

// Anon returns a zeroed read-write mapping of size bytes.
func Anon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, unmap, err := mapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// File maps the file at path read-only. Empty files map to an empty
// Mapping.
func File(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &Mapping{}, nil
	}
	data, unmap, err := mapFile(f, int(fi.Size()))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Bytes returns the mapped memory, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Len returns the mapped size in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Slices carves the mapping into n consecutive slices of size bytes, each
// capped so appends cannot run into its neighbour.
func (m *Mapping) Slices(n, size int) ([][]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if n < 0 || size < 0 || n*size > len(m.data) {
		return nil, ErrInvalidSize
	}
	out := make([][]byte, n)
	for i := range out {
		out[i] = m.data[i*size : (i+1)*size : (i+1)*size]
	}
	return out, nil
}

// AdviseSequential hints that the mapping will be read front to back.
func (m *Mapping) AdviseSequential() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return adviseSequential(m.data)
}

// Close unmaps the memory. Repeated calls are no-ops.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.unmap == nil {
		return nil
	}
	return m.unmap()
}
