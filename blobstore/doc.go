// Package blobstore stores immutable blobs, such as the compressed cells and
// manifests of paged volumes.
//
// Store is the interface every backend implements. Implementations must be
// safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and generated volumes
//   - LocalStore: local filesystem, reads are memory mapped
//   - CachingStore: whole-blob LRU in front of a slower store
//   - s3.Store: Amazon S3, uploads through the transfer manager
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (io.ReadCloser, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Open returns an error satisfying errors.Is(err, ErrNotFound) for missing
// blobs.
package blobstore
