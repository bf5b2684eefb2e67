// Package paged serves a multi-resolution volume from a blobstore.Store,
// loading cells lazily in the background.
//
// # Layout
//
//	<prefix>/MANIFEST.json           levels, cell sizes, compression
//	<prefix>/L<level>/<z>_<y>_<x>    one compressed cell per blob
//
// # Loading
//
//	TryCell(pos) ── resident? ──yes──► cell bytes
//	                   │
//	                   no ──► schedule load, return "not resident"
//	                               │
//	                   AcquireLoad (per-frame queue)
//	                               │
//	                   Open ─► RateLimitedReader ─► Decompress ─► AcquireMemory
//	                               │                    (evict LRU cells
//	                        mark resident, OnLoad()      until it fits)
//
// Loads still waiting for a worker when PrepareNextFrame is called are
// dropped, so every frame starts with a queue that only holds its own
// requests. A dropped or failed cell is scheduled again on its next miss.
//
// Resident cells of all levels share one recency list; a TryCell hit marks
// its cell as used. Only a cell larger than the whole memory limit fails to
// load.
package paged
