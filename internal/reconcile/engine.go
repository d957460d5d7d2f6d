package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/k3an3/syncprojectsd/internal/hashing"
	"github.com/k3an3/syncprojectsd/internal/metadata"
	"github.com/k3an3/syncprojectsd/internal/objectstore"
	"github.com/k3an3/syncprojectsd/internal/state"
)

// MetadataRecorder is the subset of the metadata client the engine depends
// on for receipt emission, defined at the consumer.
type MetadataRecorder interface {
	RecordSync(ctx context.Context, projectID int, songIDs []int) error
	RecordSyncWithNote(ctx context.Context, projectID, songID int, note string) error
}

// Engine reconciles individual songs: verdict, transfer, state commit, and
// receipt emission (spec.md §4.4).
type Engine struct {
	Store       state.Store
	ObjectStore objectstore.Client
	Metadata    MetadataRecorder
	Conflict    ConflictPrompter
	Changelog   ChangelogPrompter
	ProjectGlob string
	WorkerWidth int
	// NestedFolders selects the on-disk layout SongDir resolves against:
	// "<project>/<song>" when true, flat "<song>" when false (spec.md §9
	// Open Questions; config.SyncConfig.NestedFolders).
	NestedFolders bool
	Logger        *slog.Logger
}

// Outcome summarizes the result of reconciling one song.
type Outcome struct {
	Verdict     Verdict
	Transferred int
	Failed      int
	Errors      []error
}

// SongDir resolves the on-disk directory for song within project, honoring
// DirectoryName overrides (spec.md §3) and the nested/flat layout toggle
// (spec.md §9 Open Questions: nested is "<project>/<song>", flat is a bare
// "<song>" directory directly under sourceDir).
func SongDir(sourceDir, projectName string, song metadata.Song, nested bool) string {
	name := song.Name
	if song.DirectoryName != "" {
		name = song.DirectoryName
	}

	if !nested {
		return filepath.Join(sourceDir, name)
	}

	return filepath.Join(sourceDir, projectName, name)
}

// ReconcileSong runs the full per-song reconciliation sequence: compute the
// verdict, resolve conflicts/archival policy, transfer the differing file
// set, then commit local state and emit a receipt on a LOCAL push.
func (e *Engine) ReconcileSong(ctx context.Context, projectID int, song metadata.Song, songDir string) (Outcome, error) {
	return e.reconcileSong(ctx, projectID, song, songDir, nil)
}

// ReconcileSongForced skips verdict computation and conflict resolution,
// using forced directly — the workdone handler's "undo" option (spec.md
// §4.6 "workdone: reconcile the single song, optionally forcing REMOTE to
// discard local changes"; §8 scenario 6).
func (e *Engine) ReconcileSongForced(ctx context.Context, projectID int, song metadata.Song, songDir string, forced Verdict) (Outcome, error) {
	return e.reconcileSong(ctx, projectID, song, songDir, &forced)
}

func (e *Engine) reconcileSong(ctx context.Context, projectID int, song metadata.Song, songDir string, forced *Verdict) (Outcome, error) {
	logger := e.logger()

	localHash, err := hashing.HashProjectRoot(songDir, e.ProjectGlob)
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: hash project root for %q: %w", song.Name, err)
	}

	songState, found, err := e.Store.GetSongState(int64(projectID), int64(song.ID))
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: load song state for %q: %w", song.Name, err)
	}

	if !found {
		songState = &state.SongState{ProjectID: int64(projectID), SongID: int64(song.ID)}
	}

	verdict := ComputeVerdict(*songState, song, localHash)

	remotePrefix := fmt.Sprintf("%d/%d/", projectID, song.ID)

	remoteManifest, err := RemoteManifest(ctx, e.ObjectStore, remotePrefix)
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: remote manifest for %q: %w", song.Name, err)
	}

	localManifest, err := hashing.WalkDir(songDir)
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: local manifest for %q: %w", song.Name, err)
	}

	if forced != nil {
		verdict = *forced
	} else {
		// Empty-manifest edge cases override the revision-based verdict
		// (spec.md §4.4): an entirely empty song on both sides needs no
		// action; an empty local side with remote content present always
		// means pull.
		switch {
		case len(localManifest) == 0 && len(remoteManifest) == 0:
			verdict = NONE
		case len(localManifest) == 0:
			verdict = REMOTE
		}

		verdict, err = Resolve(ctx, verdict, song, song.Name, e.Conflict)
		if err != nil {
			return Outcome{}, err
		}
	}

	if verdict == NONE {
		logger.Debug("no action", slog.String("song", song.Name))

		return Outcome{Verdict: NONE}, nil
	}

	var (
		src, dst      hashing.Manifest
		dir           TransferDirection
		changelogNote string
	)

	if verdict == LOCAL {
		src, dst, dir = localManifest, remoteManifest, Upload

		if e.Changelog != nil {
			note, err := e.Changelog.PromptChangelog(ctx, song.Name)
			if err != nil {
				return Outcome{}, fmt.Errorf("reconcile: changelog prompt for %q: %w", song.Name, err)
			}

			changelogNote = note
		}
	} else {
		src, dst, dir = remoteManifest, localManifest, Download
	}

	keys := hashing.Diff(src, dst)

	start := time.Now()
	result := RunTransfers(ctx, e.ObjectStore, songDir, remotePrefix, keys, dir, e.WorkerWidth)
	logger.Info("transfer complete",
		slog.String("song", song.Name),
		slog.String("verdict", verdict.String()),
		slog.Int("transferred", result.Transferred),
		slog.Int("failed", result.Failed),
		slog.Duration("elapsed", time.Since(start)),
	)

	if err := e.commit(ctx, projectID, song, songDir, verdict, changelogNote); err != nil {
		return Outcome{}, err
	}

	return Outcome{Verdict: verdict, Transferred: result.Transferred, Failed: result.Failed, Errors: result.Errors}, nil
}

func (e *Engine) commit(ctx context.Context, projectID int, song metadata.Song, songDir string, verdict Verdict, changelogNote string) error {
	next := &state.SongState{ProjectID: int64(projectID), SongID: int64(song.ID)}

	switch verdict {
	case LOCAL:
		localHash, err := hashing.HashProjectRoot(songDir, e.ProjectGlob)
		if err != nil {
			return fmt.Errorf("reconcile: re-hash project root after upload for %q: %w", song.Name, err)
		}

		next.Revision = int64(song.Revision) + 1
		next.KnownHash = localHash

		if err := e.Store.PutSongState(next); err != nil {
			return fmt.Errorf("reconcile: commit state for %q: %w", song.Name, err)
		}

		if changelogNote != "" {
			return e.Metadata.RecordSyncWithNote(ctx, projectID, song.ID, changelogNote)
		}

		return e.Metadata.RecordSync(ctx, projectID, []int{song.ID})

	case REMOTE:
		localHash, err := hashing.HashProjectRoot(songDir, e.ProjectGlob)
		if err != nil {
			return fmt.Errorf("reconcile: re-hash project root after download for %q: %w", song.Name, err)
		}

		next.Revision = int64(song.Revision)
		next.KnownHash = localHash

		if err := e.Store.PutSongState(next); err != nil {
			return fmt.Errorf("reconcile: commit state for %q: %w", song.Name, err)
		}

		return nil

	default:
		return nil
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}

	return slog.Default()
}
