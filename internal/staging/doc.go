// Package staging fills cache blocks on a worker pool and hands them to the
// render goroutine for upload.
//
// # Architecture
//
//	render goroutine          issuer                 workers (errgroup)
//	────────────────          ──────                 ──────────────────
//	Run(tasks) ─────────────▶ for each task:
//	                            budget exceeded? ──▶ stop issuing
//	                            g.Go(fill) ───────▶ WorkerContext ◀─ pool
//	                                                 Ring.Acquire (blocks)
//	                                                 FillTask.Fill(buf)
//	◀──────────────────────────────────────────────  results <- task
//	upload(task, buf)
//	Ring.Release(buf)
//
// Staging buffers are carved from one anonymous memory mapping. A worker
// holds a buffer from Acquire until the render goroutine has uploaded it, so
// the number of blocks in flight never exceeds the ring size.
//
// WorkerContext carries per-worker scratch: one cell accessor per stack and
// level index, and one grid copier per cache spec. Contexts are handed out
// through a channel and are never used by two workers at once.
// RetainStacks prunes the accessors of stacks that are no longer drawn.
package staging
