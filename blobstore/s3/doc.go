// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("projects/demo/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	db, err := varanno.Open(ctx, "demo", store, src)
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Managed (multipart) uploads with optional CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
