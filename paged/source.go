package paged

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/blockstream/blobstore"
	"github.com/hupe1980/blockstream/internal/codec"
	"github.com/hupe1980/blockstream/internal/resource"
	"github.com/hupe1980/blockstream/volume"
)

// ErrClosed is returned by operations on a closed Source.
var ErrClosed = errors.New("paged: source closed")

type options struct {
	controller *resource.Controller
	logger     *slog.Logger
	codec      codec.Codec
	onLoad     func()
}

// Option configures Open.
type Option func(*options)

// WithController bounds concurrent loads, read throughput, and resident
// memory. Default: one load at a time, no IO or memory limit.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.controller = rc }
}

// WithLogger sets the logger for load failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCodec sets the manifest codec. Default codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithOnLoad registers a callback invoked after each cell becomes
// resident. It runs on a loader goroutine.
func WithOnLoad(fn func()) Option {
	return func(o *options) { o.onLoad = fn }
}

// Stats are cumulative load counters.
type Stats struct {
	Loads     int64
	Failures  int64
	Dropped   int64
	Evictions int64 // Cells dropped to stay within the memory limit
	Bytes     int64 // Compressed bytes read
}

// Source is an opened paged volume.
type Source struct {
	store       blobstore.Store
	prefix      string
	manifest    *Manifest
	voxelType   volume.VoxelType
	compression codec.Compression
	rc          *resource.Controller
	logger      *slog.Logger
	onLoad      func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	frameCtx    context.Context
	frameCancel context.CancelFunc
	closed      bool

	levels    []*Grid
	residency *residency

	loads     atomic.Int64
	failures  atomic.Int64
	dropped   atomic.Int64
	evictions atomic.Int64
	bytes     atomic.Int64
}

// Open reads the manifest below prefix. No cell is read until it is missed.
func Open(ctx context.Context, store blobstore.Store, prefix string, optFns ...Option) (*Source, error) {
	o := options{}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.controller == nil {
		o.controller = resource.NewController(resource.Config{})
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	m, err := LoadManifest(ctx, store, prefix, o.codec)
	if err != nil {
		return nil, err
	}
	vt, _ := parseVoxelType(m.VoxelType)
	comp, _ := codec.ParseCompression(m.Compression)

	s := &Source{
		store:       store,
		prefix:      prefix,
		manifest:    m,
		voxelType:   vt,
		compression: comp,
		rc:          o.controller,
		logger:      o.logger.With("prefix", prefix),
		onLoad:      o.onLoad,
		residency:   newResidency(),
	}
	// Loads outlive the ctx passed to Open; Close stops them.
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.frameCtx, s.frameCancel = context.WithCancel(s.ctx)

	for _, info := range m.Levels {
		s.levels = append(s.levels, newGrid(s, info))
	}
	return s, nil
}

// Manifest returns the decoded manifest.
func (s *Source) Manifest() *Manifest { return s.manifest }

// VoxelType returns the voxel type of all levels.
func (s *Source) VoxelType() volume.VoxelType { return s.voxelType }

// NumLevels returns the number of levels.
func (s *Source) NumLevels() int { return len(s.levels) }

// Level returns the volatile grid of level i.
func (s *Source) Level(i int) *Grid { return s.levels[i] }

// Stack wraps the levels into a volume.Stack.
func (s *Source) Stack(id volume.StackID, opts ...volume.StackOption) (*volume.Stack, error) {
	levels := make([]*volume.Level, len(s.levels))
	for i, g := range s.levels {
		levels[i] = &volume.Level{Index: i, R: g.info.R, Grid: volume.Volatile(g)}
	}
	return volume.NewStack(id, s.voxelType, levels, opts...)
}

// PrepareNextFrame drops loads that are still queued for a worker. Loads
// already reading keep running.
func (s *Source) PrepareNextFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.frameCancel()
	s.frameCtx, s.frameCancel = context.WithCancel(s.ctx)
}

// Preload reads every cell of level synchronously. It is used to make the
// coarsest level resident before the first frame.
func (s *Source) Preload(ctx context.Context, level int) error {
	g := s.levels[level]
	gs := g.info.GridSize()
	for z := int64(0); z < gs[2]; z++ {
		for y := int64(0); y < gs[1]; y++ {
			for x := int64(0); x < gs[0]; x++ {
				pos := [3]int64{x, y, z}
				if g.IsResident(pos) {
					continue
				}
				data, err := s.fetch(ctx, g, pos)
				if err != nil {
					return err
				}
				if err := g.install(pos, data); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Wait blocks until no load is in flight.
func (s *Source) Wait() { s.wg.Wait() }

// Stats returns cumulative load counters.
func (s *Source) Stats() Stats {
	return Stats{
		Loads:     s.loads.Load(),
		Failures:  s.failures.Load(),
		Dropped:   s.dropped.Load(),
		Evictions: s.evictions.Load(),
		Bytes:     s.bytes.Load(),
	}
}

// Close stops background loads and releases resident memory.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.frameCancel()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	for _, g := range s.levels {
		g.evictAll()
	}
	return nil
}

// reserve charges n bytes to the memory limit, evicting least recently used
// cells of any level until they fit.
func (s *Source) reserve(n int64) error {
	for {
		err := s.rc.AcquireMemory(n)
		if err == nil || !errors.Is(err, resource.ErrMemoryLimitExceeded) {
			return err
		}
		ref, ok := s.residency.popOldest()
		if !ok {
			return err
		}
		ref.grid.evictIndex(ref.idx)
		s.evictions.Add(1)
	}
}

// schedule starts a background load unless the source is closed.
func (s *Source) schedule(g *Grid, idx uint32, pos [3]int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	frameCtx := s.frameCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.load(frameCtx, g, idx, pos)
	}()
	return true
}

func (s *Source) load(frameCtx context.Context, g *Grid, idx uint32, pos [3]int64) {
	if err := s.rc.AcquireLoad(frameCtx); err != nil {
		s.dropped.Add(1)
		g.abandon(idx)
		return
	}
	defer s.rc.ReleaseLoad()

	data, err := s.fetch(s.ctx, g, pos)
	if err == nil {
		err = g.install(pos, data)
	}
	if err != nil {
		g.abandon(idx)
		if s.ctx.Err() != nil {
			return
		}
		s.failures.Add(1)
		s.logger.Warn("cell load failed",
			"level", g.info.Index,
			"cell", pos,
			"error", err,
		)
		return
	}
	s.loads.Add(1)
	if s.onLoad != nil {
		s.onLoad()
	}
}

func (s *Source) fetch(ctx context.Context, g *Grid, pos [3]int64) ([]byte, error) {
	name := cellName(s.prefix, g.info.Index, pos)
	rc, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	r := resource.NewRateLimitedReader(ctx, rc, s.rc)
	var blob []byte
	if sz, ok := rc.(blobstore.Sized); ok {
		blob = make([]byte, sz.Size())
		_, err = io.ReadFull(r, blob)
	} else {
		blob, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	s.bytes.Add(int64(len(blob)))

	data, err := codec.Decompress(nil, blob, s.compression)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if want := g.cellBytes(pos); len(data) != want {
		return nil, fmt.Errorf("%w: %s holds %d bytes, want %d", codec.ErrCorrupt, name, len(data), want)
	}
	return data, nil
}
