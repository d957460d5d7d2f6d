package reconcile

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/k3an3/syncprojectsd/internal/hashing"
	"github.com/k3an3/syncprojectsd/internal/objectstore"
)

// RemoteManifest fetches the object-store listing under remotePrefix and
// shapes it into a hashing.Manifest keyed the same way as a local walk, so
// the two can be diffed directly.
func RemoteManifest(ctx context.Context, store objectstore.Client, remotePrefix string) (hashing.Manifest, error) {
	objects, err := store.List(ctx, remotePrefix)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list remote manifest %s: %w", remotePrefix, err)
	}

	manifest := make(hashing.Manifest, len(objects))

	for _, obj := range objects {
		key := strings.TrimPrefix(obj.Key, remotePrefix)
		manifest[key] = obj.ETag
	}

	return manifest, nil
}

// TransferDirection selects which side of the diff is source and which is
// destination.
type TransferDirection int

const (
	Upload TransferDirection = iota
	Download
)

// TransferResult tallies the outcome of a transfer set (spec.md §4.4:
// "each failed transfer is counted but does not abort the song").
type TransferResult struct {
	Transferred int
	Failed      int
	Errors      []error
}

// RunTransfers moves every key in keys between the local song directory and
// remotePrefix in direction dir, behind a worker pool of the given width
// (spec.md §4.4/§5; default 25, collapsed to serial when width <= 1 to
// match THREADS_OFF=1 — see config.SyncConfig.WorkerPoolWidth).
func RunTransfers(ctx context.Context, store objectstore.Client, songDir, remotePrefix string, keys []string, dir TransferDirection, width int) TransferResult {
	if width < 1 {
		width = 1
	}

	var (
		mu     sync.Mutex
		result TransferResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(width)

	for _, key := range keys {
		key := key

		g.Go(func() error {
			localPath := filepath.Join(songDir, filepath.FromSlash(key))
			remoteKey := path.Join(remotePrefix, filepath.ToSlash(key))

			var err error

			switch dir {
			case Upload:
				err = objectstore.WithLocalReadRetry(gctx, func(ctx context.Context) error {
					return store.Upload(ctx, localPath, remoteKey)
				})
			case Download:
				err = store.Download(gctx, remoteKey, localPath)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Errorf("reconcile: transfer %s: %w", key, err))

				return nil // a single failed file never aborts the song.
			}

			result.Transferred++

			return nil
		})
	}

	_ = g.Wait()

	return result
}
