// Package engine runs the per-frame block streaming loop.
//
// One Update call:
//
//	CacheControl.PrepareNextFrame
//	        │
//	Level Selector per stack ──none visible──► Frame{Visible: false}
//	        │
//	Culler at each base level ──► RequiredBlocks
//	        │
//	level walk per block ──► unique block keys   (raise the base level of the
//	        │                                     stack with the most keys
//	        │                                     while all keys exceed capacity)
//	stage: touch / refill / Add with LRU eviction
//	        │
//	reset IO budget, staging pipeline: workers fill buffers, render
//	goroutine uploads
//	        │
//	lookup texture per stack: best resident level per block ──► needsRepaint
//
// All stacks share one cache texture and one LRU; each has its own lookup
// texture. All methods run on the render goroutine. Only the fill step is
// parallel.
package engine
