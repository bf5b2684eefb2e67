package engine

import "time"

// MetricsObserver defines the interface for observing frame events.
type MetricsObserver interface {
	// OnFrame is called at the end of each Update.
	OnFrame(duration time.Duration, required, tasks int, needsRepaint bool)

	// OnFill is called for each staged block.
	OnFill(complete bool)

	// OnEviction is called when a block loses its cache slot.
	OnEviction()

	// OnUpload is called after each texture write.
	OnUpload(bytes int, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnFrame(time.Duration, int, int, bool) {}
func (NoopMetricsObserver) OnFill(bool)                           {}
func (NoopMetricsObserver) OnEviction()                           {}
func (NoopMetricsObserver) OnUpload(int, error)                   {}
