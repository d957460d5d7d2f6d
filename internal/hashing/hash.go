// Package hashing implements the content-hashing and manifest-building
// primitives the reconciliation engine uses for three-way diffing: per-file
// content hashes that agree with the object store's single-part ETag
// scheme, recursive directory manifests, and the cheap per-song root digest
// used as the verdict function's "did the session change" signal
// (spec.md §4.3).
package hashing

import (
	"crypto/md5" //nolint:gosec // matches the object store's default ETag scheme for non-multipart uploads, not used for security.
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// blockSize is the read chunk size for streaming file hashes, matching
// spec.md §4.3 ("streams the file in 4 KiB blocks").
const blockSize = 4096

// HashFile streams path through MD5 in 4 KiB blocks and returns the
// lowercase hex digest. MD5 is the default digest because it matches the
// object store's ETag for non-multipart uploads — this lets the
// reconciliation engine compare a freshly-computed local hash directly
// against a remote ETag without a translation step.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing: open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // see package doc: content fingerprint, not a security boundary.
	buf := make([]byte, blockSize)

	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing: read %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
