package blockstream

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    frameHistogram prometheus.Histogram
//	    evictions      prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordFrame(d time.Duration, required, tasks int, needsRepaint bool) {
//	    p.frameHistogram.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordFrame is called at the end of each Update.
	// required is the number of required base level blocks, tasks the
	// number of blocks the level walk selected.
	RecordFrame(duration time.Duration, required, tasks int, needsRepaint bool)

	// RecordFill is called for each staged block. complete is false when
	// some voxels were not resident.
	RecordFill(complete bool)

	// RecordEviction is called when a block loses its cache slot.
	RecordEviction()

	// RecordUpload is called after each texture write.
	RecordUpload(bytes int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFrame(time.Duration, int, int, bool) {}
func (NoopMetricsCollector) RecordFill(bool)                           {}
func (NoopMetricsCollector) RecordEviction()                           {}
func (NoopMetricsCollector) RecordUpload(int, error)                   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FrameCount      atomic.Int64
	FrameTotalNanos atomic.Int64
	RepaintCount    atomic.Int64
	RequiredBlocks  atomic.Int64
	FillCount       atomic.Int64
	IncompleteFills atomic.Int64
	EvictionCount   atomic.Int64
	UploadCount     atomic.Int64
	UploadBytes     atomic.Int64
	UploadErrors    atomic.Int64
}

// RecordFrame implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFrame(duration time.Duration, required, tasks int, needsRepaint bool) {
	b.FrameCount.Add(1)
	b.FrameTotalNanos.Add(duration.Nanoseconds())
	b.RequiredBlocks.Add(int64(required))
	if needsRepaint {
		b.RepaintCount.Add(1)
	}
}

// RecordFill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFill(complete bool) {
	b.FillCount.Add(1)
	if !complete {
		b.IncompleteFills.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction() {
	b.EvictionCount.Add(1)
}

// RecordUpload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpload(bytes int, err error) {
	b.UploadCount.Add(1)
	if err != nil {
		b.UploadErrors.Add(1)
		return
	}
	b.UploadBytes.Add(int64(bytes))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FrameCount:      b.FrameCount.Load(),
		FrameAvgNanos:   b.getAvgFrameNanos(),
		RepaintCount:    b.RepaintCount.Load(),
		RequiredBlocks:  b.RequiredBlocks.Load(),
		FillCount:       b.FillCount.Load(),
		IncompleteFills: b.IncompleteFills.Load(),
		EvictionCount:   b.EvictionCount.Load(),
		UploadCount:     b.UploadCount.Load(),
		UploadBytes:     b.UploadBytes.Load(),
		UploadErrors:    b.UploadErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFrameNanos() int64 {
	count := b.FrameCount.Load()
	if count == 0 {
		return 0
	}
	return b.FrameTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FrameCount      int64
	FrameAvgNanos   int64
	RepaintCount    int64
	RequiredBlocks  int64
	FillCount       int64
	IncompleteFills int64
	EvictionCount   int64
	UploadCount     int64
	UploadBytes     int64
	UploadErrors    int64
}

// metricsObserver adapts a MetricsCollector to the engine's observer.
type metricsObserver struct {
	mc MetricsCollector
}

func (o metricsObserver) OnFrame(d time.Duration, required, tasks int, needsRepaint bool) {
	o.mc.RecordFrame(d, required, tasks, needsRepaint)
}

func (o metricsObserver) OnFill(complete bool)          { o.mc.RecordFill(complete) }
func (o metricsObserver) OnEviction()                   { o.mc.RecordEviction() }
func (o metricsObserver) OnUpload(bytes int, err error) { o.mc.RecordUpload(bytes, err) }
