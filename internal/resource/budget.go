package resource

import "time"

// FrameBudget is a per-frame wall time allowance. It is owned by the render
// goroutine.
type FrameBudget struct {
	limit    time.Duration
	deadline time.Time
	now      func() time.Time
}

// NewFrameBudget returns a budget of limit per frame. A limit <= 0 never
// expires.
func NewFrameBudget(limit time.Duration) *FrameBudget {
	return &FrameBudget{limit: limit, now: time.Now}
}

// Reset starts a new frame.
func (b *FrameBudget) Reset() {
	if b == nil || b.limit <= 0 {
		return
	}
	b.deadline = b.now().Add(b.limit)
}

// Exceeded reports whether the current frame ran out of time.
func (b *FrameBudget) Exceeded() bool {
	if b == nil || b.limit <= 0 {
		return false
	}
	return !b.now().Before(b.deadline)
}

// Remaining returns the time left in the current frame.
func (b *FrameBudget) Remaining() time.Duration {
	if b == nil || b.limit <= 0 {
		return time.Duration(1<<63 - 1)
	}
	if d := b.deadline.Sub(b.now()); d > 0 {
		return d
	}
	return 0
}

// Limit returns the per-frame allowance.
func (b *FrameBudget) Limit() time.Duration {
	if b == nil {
		return 0
	}
	return b.limit
}
