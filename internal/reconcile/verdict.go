// Package reconcile implements the per-song three-way reconciliation
// algorithm (spec.md §4.4): verdict computation, manifest diffing, parallel
// object-store transfer, and the post-transfer state commit and receipt
// emission that follow a successful sync.
package reconcile

import (
	"github.com/k3an3/syncprojectsd/internal/metadata"
	"github.com/k3an3/syncprojectsd/internal/state"
)

// Verdict is the reconciliation outcome for one song.
type Verdict int

const (
	NONE Verdict = iota
	LOCAL
	REMOTE
	CONFLICT
)

func (v Verdict) String() string {
	switch v {
	case LOCAL:
		return "local"
	case REMOTE:
		return "remote"
	case CONFLICT:
		return "conflict"
	default:
		return "none"
	}
}

// ComputeVerdict implements the table in spec.md §4.4. localHash is
// hash_project_root(song_dir) — empty when the song has no local copy at
// all, which always resolves to REMOTE regardless of revision bookkeeping.
func ComputeVerdict(songState state.SongState, song metadata.Song, localHash string) Verdict {
	if localHash == "" {
		return REMOTE
	}

	localChanged := localHash != songState.KnownHash

	switch {
	case song.Revision == songState.Revision:
		if localChanged {
			return LOCAL
		}

		return NONE
	case song.Revision > songState.Revision:
		if localChanged {
			return CONFLICT
		}

		return REMOTE
	default: // song.Revision < songState.Revision
		return LOCAL
	}
}
