package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/blockstream/internal/mem"
	"github.com/hupe1980/blockstream/internal/mmap"
)

// ErrForeignBuffer is returned when releasing a buffer of another ring.
var ErrForeignBuffer = errors.New("staging: buffer does not belong to ring")

// Buffer is one staging buffer of a Ring.
type Buffer struct {
	ring  *Ring
	index int
	data  []byte
}

// Index returns the buffer position in its ring.
func (b *Buffer) Index() int { return b.index }

// Bytes returns the buffer memory. It is valid until the ring is closed.
func (b *Buffer) Bytes() []byte { return b.data }

// Ring is a bounded pool of equally sized staging buffers.
type Ring struct {
	mapping    *mmap.Mapping
	buffers    []*Buffer
	free       chan *Buffer
	blockBytes int
}

// NewRing returns a ring of n buffers of blockBytes each, backed by one
// anonymous mapping. When the platform refuses the mapping the buffers are
// allocated on the Go heap instead.
func NewRing(n, blockBytes int) (*Ring, error) {
	if n <= 0 || blockBytes <= 0 {
		return nil, fmt.Errorf("staging: invalid ring of %d buffers of %d bytes", n, blockBytes)
	}
	r := &Ring{
		buffers:    make([]*Buffer, n),
		free:       make(chan *Buffer, n),
		blockBytes: blockBytes,
	}

	// Round each buffer up to the alignment so 16-bit voxel views stay
	// aligned.
	stride := (blockBytes + mem.Alignment - 1) / mem.Alignment * mem.Alignment

	var backing []byte
	m, err := mmap.Anon(n * stride)
	if err == nil {
		r.mapping = m
		slices, err := m.Slices(n, stride)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		for i, data := range slices {
			r.buffers[i] = &Buffer{ring: r, index: i, data: data[:blockBytes]}
		}
	} else {
		backing = mem.AllocAligned(n * stride)
		for i := range r.buffers {
			r.buffers[i] = &Buffer{ring: r, index: i, data: backing[i*stride : i*stride+blockBytes]}
		}
	}

	for _, b := range r.buffers {
		r.free <- b
	}
	return r, nil
}

// Acquire returns a free buffer, blocking until one is released or ctx is
// done.
func (r *Ring) Acquire(ctx context.Context) (*Buffer, error) {
	select {
	case b := <-r.free:
		return b, nil
	default:
	}
	select {
	case b := <-r.free:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire returns a free buffer without blocking.
func (r *Ring) TryAcquire() (*Buffer, bool) {
	select {
	case b := <-r.free:
		return b, true
	default:
		return nil, false
	}
}

// Release returns b to the ring.
func (r *Ring) Release(b *Buffer) error {
	if b == nil || b.ring != r {
		return ErrForeignBuffer
	}
	r.free <- b
	return nil
}

// Len returns the number of buffers.
func (r *Ring) Len() int { return len(r.buffers) }

// Available returns the number of free buffers.
func (r *Ring) Available() int { return len(r.free) }

// BlockBytes returns the size of each buffer.
func (r *Ring) BlockBytes() int { return r.blockBytes }

// Close unmaps the ring memory. Buffers must not be used afterwards.
func (r *Ring) Close() error {
	if r.mapping == nil {
		return nil
	}
	return r.mapping.Close()
}
