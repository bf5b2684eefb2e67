package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blockstream/internal/resource"
	"github.com/hupe1980/blockstream/volume"
)

// Config configures a Pipeline.
type Config struct {
	// Workers is the fill concurrency. Default max(1, NumCPU/2).
	Workers int
	// Buffers is the staging ring size. Default 2*Workers.
	Buffers int
	// IOBudget caps the time spent issuing tasks per frame. Zero means
	// unlimited.
	IOBudget time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	w := max(1, runtime.NumCPU()/2)
	return Config{Workers: w, Buffers: 2 * w}
}

// UploadFunc uploads the staged block of task. It runs on the goroutine
// that called Run.
type UploadFunc func(task *FillTask, data []byte) error

// Result summarizes one Run.
type Result struct {
	Issued     int
	Skipped    int
	Complete   int
	Incomplete int
	Duration   time.Duration
}

// Pipeline stages blocks of one cache spec.
type Pipeline struct {
	spec    volume.CacheSpec
	cfg     Config
	ring    *Ring
	workers chan *WorkerContext
	budget  *resource.FrameBudget
	logger  *slog.Logger
}

// New returns a pipeline for blocks of spec.
func New(spec volume.CacheSpec, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if err := spec.VoxelType().Validate(); err != nil {
		return nil, err
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = 2 * cfg.Workers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ring, err := NewRing(cfg.Buffers, spec.BytesPerBlock())
	if err != nil {
		return nil, err
	}

	workers := make(chan *WorkerContext, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		workers <- newWorkerContext(i)
	}

	return &Pipeline{
		spec:    spec,
		cfg:     cfg,
		ring:    ring,
		workers: workers,
		budget:  resource.NewFrameBudget(cfg.IOBudget),
		logger:  logger,
	}, nil
}

// Spec returns the cache spec.
func (p *Pipeline) Spec() volume.CacheSpec { return p.spec }

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Ring returns the staging ring.
func (p *Pipeline) Ring() *Ring { return p.ring }

// ResetBudget starts the IO budget of a new frame.
func (p *Pipeline) ResetBudget() { p.budget.Reset() }

// Run fills tasks in order on the worker pool and uploads each filled task
// on the calling goroutine. Once the frame budget is exhausted no further
// tasks are issued; tasks already issued always complete. Skipped tasks stay
// Pending.
//
// Upload errors do not stop the drain; the first one is returned.
func (p *Pipeline) Run(ctx context.Context, tasks []*FillTask, upload UploadFunc) (Result, error) {
	start := time.Now()
	res := Result{}
	if len(tasks) == 0 {
		return res, nil
	}

	results := make(chan *FillTask, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	issued := make(chan int, 1)
	go func() {
		n := 0
		for _, t := range tasks {
			if gctx.Err() != nil || p.budget.Exceeded() {
				break
			}
			n++
			g.Go(func() error { return p.fill(gctx, t, results) })
		}
		issued <- n
	}()

	var fillErr error
	go func() {
		n := <-issued
		fillErr = g.Wait()
		issued <- n
		close(results)
	}()

	var uploadErr error
	for t := range results {
		buf := t.buffer
		if err := upload(t, buf.Bytes()); err != nil && uploadErr == nil {
			uploadErr = fmt.Errorf("upload %s: %w", t.Key, err)
		}
		t.state = Uploaded
		t.buffer = nil
		_ = p.ring.Release(buf)
		if t.complete {
			res.Complete++
		} else {
			res.Incomplete++
		}
	}

	res.Issued = <-issued
	res.Skipped = len(tasks) - res.Issued
	res.Duration = time.Since(start)
	if res.Skipped > 0 {
		p.logger.Debug("staging budget exhausted", "issued", res.Issued, "skipped", res.Skipped)
	}

	if fillErr != nil && !errors.Is(fillErr, context.Canceled) {
		return res, fillErr
	}
	if uploadErr != nil {
		return res, uploadErr
	}
	return res, ctx.Err()
}

func (p *Pipeline) fill(ctx context.Context, t *FillTask, results chan<- *FillTask) error {
	wc := <-p.workers
	defer func() { p.workers <- wc }()

	buf, err := p.ring.Acquire(ctx)
	if err != nil {
		return err
	}
	t.complete = t.Fill(wc, buf.Bytes())
	t.buffer = buf
	t.state = Filled
	results <- t
	return nil
}

// RetainStacks drops the worker accessors of every stack not in ids. It
// must not overlap Run.
func (p *Pipeline) RetainStacks(ids ...volume.StackID) {
	keep := make(map[volume.StackID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	for i := 0; i < p.cfg.Workers; i++ {
		wc := <-p.workers
		wc.retain(keep)
		p.workers <- wc
	}
}

// Close releases the staging memory.
func (p *Pipeline) Close() error {
	return p.ring.Close()
}
