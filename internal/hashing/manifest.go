package hashing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// Manifest maps a song-relative path to its content hash.
type Manifest map[string]string

// peakExtension is skipped by WalkDir: waveform peak cache files regenerate
// automatically and carry no session state worth syncing (spec.md §4.3).
const peakExtension = ".peak"

// WalkDir recursively hashes every regular file under root and returns a
// Manifest keyed by path relative to root. Entries whose name contains a
// backslash are skipped — legacy sanitization inherited from an
// object-store layout that once mixed '\' and '/' separators (spec.md §9
// Open Questions) — as are ".peak" files. Relative paths are normalized to
// NFC so that accented song/project names hash identically across macOS
// (which stores NFD on the filesystem) and Linux, the same rationale the
// teacher applies in its scanner (internal/sync/scanner.go).
func WalkDir(root string) (Manifest, error) {
	type found struct {
		relPath string
		absPath string
	}

	var files []found

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("hashing: relativize %s: %w", path, err)
		}

		if shouldSkip(rel) {
			return nil
		}

		files = append(files, found{relPath: norm.NFC.String(rel), absPath: path})

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}

		return nil, fmt.Errorf("hashing: walk %s: %w", root, err)
	}

	manifest := make(Manifest, len(files))
	hashes := make([]string, len(files))

	var g errgroup.Group

	for i, f := range files {
		i, f := i, f

		g.Go(func() error {
			h, err := HashFile(f.absPath)
			if err != nil {
				return err
			}

			hashes[i] = h

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, f := range files {
		manifest[f.relPath] = hashes[i]
	}

	return manifest, nil
}

// shouldSkip reports whether a relative path should be excluded from the
// manifest: ".peak" files, and any path component containing a backslash
// (a relic of Windows-style keys surviving in older object-store layouts).
func shouldSkip(relPath string) bool {
	if strings.EqualFold(filepath.Ext(relPath), peakExtension) {
		return true
	}

	return strings.Contains(relPath, `\`)
}

// Diff returns the set of keys in src that are missing from dst or whose
// hash differs — the transfer set for a LOCAL or REMOTE verdict
// (spec.md §4.4).
func Diff(src, dst Manifest) []string {
	var keys []string

	for k, srcHash := range src {
		if dstHash, ok := dst[k]; !ok || dstHash != srcHash {
			keys = append(keys, k)
		}
	}

	return keys
}
