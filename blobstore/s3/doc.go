// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("volumes/brain/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	src, err := paged.Open(ctx, store, "t0/s0")
//
// # Features
//
//   - Uploads through the transfer manager, multipart for large blobs
//   - Automatic pagination for listing
//   - Configurable prefix for sharing one bucket between datasets
package s3
