package staging

import (
	"fmt"

	"github.com/hupe1980/blockstream/internal/cache"
)

// TaskState is the lifecycle of a FillTask.
type TaskState uint8

const (
	// Pending tasks have not been filled.
	Pending TaskState = iota
	// Filled tasks hold a staging buffer awaiting upload.
	Filled
	// Uploaded tasks are done.
	Uploaded
)

func (s TaskState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Filled:
		return "filled"
	case Uploaded:
		return "uploaded"
	default:
		return fmt.Sprintf("TaskState(%d)", uint8(s))
	}
}

// FillFunc writes one padded block into dst and reports whether every
// covering cell was resident.
type FillFunc func(wc *WorkerContext, dst []byte) (complete bool)

// FillTask loads one block into one cache slot.
type FillTask struct {
	Key  cache.Key
	Slot *cache.Slot
	Fill FillFunc

	state    TaskState
	complete bool
	buffer   *Buffer
}

// NewFillTask returns a pending task.
func NewFillTask(key cache.Key, slot *cache.Slot, fill FillFunc) *FillTask {
	return &FillTask{Key: key, Slot: slot, Fill: fill}
}

// State returns the task state. Only valid on the render goroutine once Run
// returned or inside the upload callback.
func (t *FillTask) State() TaskState { return t.state }

// Complete reports whether the fill saw every covering cell.
func (t *FillTask) Complete() bool { return t.complete }

func (t *FillTask) String() string {
	return fmt.Sprintf("FillTask{%s %s}", t.Key, t.state)
}
