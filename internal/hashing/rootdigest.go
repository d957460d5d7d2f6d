package hashing

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary; see hash.go.
	"fmt"
	"io"
	"path/filepath"
	"sort"
)

// HashProjectRoot digests only the top-level session files matching glob
// (defaulting to "*.cpr" — see config.defaultProjectRootGlob) under dir and
// returns a single short hex digest. This is the cheap "did the session
// itself change" signal the verdict function uses as local_hash
// (spec.md §4.3, §4.4) — far cheaper than a full recursive manifest because
// it reads only the handful of top-level session files rather than every
// audio asset in the song directory.
//
// An empty result (no matching files, e.g. the song directory does not
// exist locally) returns "" so callers can treat it as "no local copy"
// per the verdict table's first row.
func HashProjectRoot(dir string, glob string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return "", fmt.Errorf("hashing: glob %s in %s: %w", glob, dir, err)
	}

	if len(matches) == 0 {
		return "", nil
	}

	// Sort for a stable digest regardless of filesystem iteration order.
	sort.Strings(matches)

	h := md5.New() //nolint:gosec // see package doc.

	for _, m := range matches {
		fileHash, err := HashFile(m)
		if err != nil {
			return "", err
		}

		if _, err := io.WriteString(h, filepath.Base(m)+":"+fileHash+"\n"); err != nil {
			return "", fmt.Errorf("hashing: digesting %s: %w", m, err)
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
