// Package objectstore talks to the S3-compatible bucket that holds song
// bodies. All operations are keyed by a flat string key; directory structure
// is convention, not a filesystem feature of the store.
package objectstore

import "context"

// Object is one entry returned by List. ETag is used as the remote content
// hash for manifest comparison (spec.md §4.1) — it must agree with the local
// hash function for unmodified, non-multipart uploads, which is why HashFile
// (internal/hashing) defaults to MD5.
type Object struct {
	Key  string
	ETag string
	Size int64
}

// Client is the object-store surface the reconciliation engine and the
// metadata-driven credential refresh depend on. Pagination is transparent:
// List returns the fully-drained result set, not a page at a time.
type Client interface {
	// List returns every object whose key has the given prefix.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Upload writes localPath to key, overwriting any existing object.
	Upload(ctx context.Context, localPath, key string) error

	// Download writes the contents of key to localPath, creating parent
	// directories as needed.
	Download(ctx context.Context, key, localPath string) error

	// Copy duplicates srcKey to dstKey without a local round-trip.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
