// Package mmap maps memory outside the Go heap.
//
// The staging ring carves its buffers out of one anonymous mapping, so the
// garbage collector never scans staged voxels. The local blob store maps
// cell blobs read-only and decodes them straight from the page cache.
//
//	m, err := mmap.Anon(n * stride)
//	bufs, _ := m.Slices(n, stride)
//	defer m.Close()
//
// Bytes and the slices handed out by Slices are invalid after Close.
package mmap
