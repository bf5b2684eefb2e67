// Package resource bounds the background work of the streaming engine.
//
// The Controller governs three resources shared by every paged source:
//
//   - Memory: bytes of decoded cell data held resident (non-blocking, fail-fast)
//   - Loads: concurrent background cell loads (weighted semaphore)
//   - IO: blob bytes read per second (token bucket)
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                        Controller                           │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Memory Limit   │  Cell Loads     │  IO Rate Limiter        │
//	│  (fail-fast)    │  (sem)          │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  AcquireMemory  │  AcquireLoad    │  AcquireIO              │
//	│  ReleaseMemory  │  TryAcquireLoad │  RateLimitedReader      │
//	│  MemoryUsage    │  ReleaseLoad    │                         │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// A FrameBudget caps the wall time the staging pipeline spends issuing fill
// tasks in one frame:
//
//	budget := resource.NewFrameBudget(5 * time.Millisecond)
//	budget.Reset()
//	for _, task := range tasks {
//	    if budget.Exceeded() {
//	        break
//	    }
//	    ...
//	}
//
// # Nil Safety
//
// All Controller methods handle a nil receiver; they become no-ops. A nil
// FrameBudget never expires.
package resource
