package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/k3an3/syncprojectsd/internal/lockproto"
	"github.com/k3an3/syncprojectsd/internal/metadata"
	"github.com/k3an3/syncprojectsd/internal/reconcile"
	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// handleSync implements spec.md §4.6 "sync": accepts either a batch of
// projects or a batch of individual songs.
func (d *Dispatcher) handleSync(ctx context.Context, task taskid.Task) error {
	if projects := sliceField(task.Data, "projects"); projects != nil {
		for _, entry := range projects {
			if err := d.syncOneProject(ctx, task.ID, entry); err != nil {
				return err
			}
		}

		d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete})

		return nil
	}

	if songs := sliceField(task.Data, "songs"); songs != nil {
		for _, entry := range songs {
			ref, ok := entry.(map[string]any)
			if !ok {
				continue
			}

			if err := d.syncOneSong(ctx, task.ID, ref); err != nil {
				return err
			}
		}

		d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete})

		return nil
	}

	return fmt.Errorf("dispatcher: sync task carries neither projects nor songs")
}

func projectIDFromEntry(entry any) (int, bool) {
	switch v := entry.(type) {
	case float64:
		return int(v), true
	case map[string]any:
		id, ok := v["id"].(float64)
		if !ok {
			return 0, false
		}

		return int(id), true
	default:
		return 0, false
	}
}

// syncOneProject locks the project, reconciles every sync-enabled song,
// pushes/pulls the amp-preset subtree, then releases the lock (spec.md
// §4.5, §4.6). A denied lock emits a warn status and returns nil so the
// batch continues to the next project.
func (d *Dispatcher) syncOneProject(ctx context.Context, taskID string, entry any) error {
	projectID, ok := projectIDFromEntry(entry)
	if !ok {
		return fmt.Errorf("dispatcher: malformed project reference in sync payload")
	}

	project, err := d.Metadata.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("dispatcher: fetch project %d: %w", projectID, err)
	}

	if !project.SyncEnabled {
		d.logger().Debug("project sync disabled, skipping", slog.Int("project_id", projectID))

		return nil
	}

	err = lockproto.WithProjectLock(ctx, d.Metadata, projectID, d.Crash, func(ctx context.Context) error {
		return d.reconcileProjectSongs(ctx, taskID, project)
	})

	var denied *lockproto.DeniedError
	if errors.As(err, &denied) {
		d.emit(taskid.Event{TaskID: taskID, Status: taskid.StatusWarn, Locked: denied.Lock})

		return nil
	}

	return err
}

func (d *Dispatcher) reconcileProjectSongs(ctx context.Context, taskID string, project metadata.Project) error {
	for _, song := range project.Songs {
		if !song.SyncEnabled || song.IsLocked {
			continue
		}

		songDir := reconcile.SongDir(d.SourceDir, project.Name, song, d.Engine.NestedFolders)

		outcome, err := d.Engine.ReconcileSong(ctx, project.ID, song, songDir)
		if err != nil {
			return fmt.Errorf("dispatcher: reconcile song %q: %w", song.Name, err)
		}

		d.emit(taskid.Event{TaskID: taskID, Status: taskid.StatusProgress, Completed: outcome})
	}

	if d.AmpDir != "" {
		if _, err := reconcile.SyncAmpPresets(ctx, d.Engine.ObjectStore, filepath.Join(d.AmpDir, project.Name), project.ID, d.AmpWidth); err != nil {
			return fmt.Errorf("dispatcher: sync amp presets for %q: %w", project.Name, err)
		}
	}

	return nil
}

// syncOneSong implements the song-checkout-without-keep variant (spec.md
// §4.5 "to work on a single song"/"§4.6 sync: per song, use the
// workon-without-keep variant (lock → reconcile → unlock)").
func (d *Dispatcher) syncOneSong(ctx context.Context, taskID string, ref map[string]any) error {
	projectID := intField(ref, "project")
	songID := intField(ref, "id")

	project, err := d.Metadata.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("dispatcher: fetch project %d: %w", projectID, err)
	}

	song, ok := findSong(project, songID)
	if !ok {
		return fmt.Errorf("dispatcher: song %d not found in project %d", songID, projectID)
	}

	handle, err := lockproto.CheckOut(ctx, d.Metadata, projectID, songID, d.Crash)

	var denied *lockproto.DeniedError
	if errors.As(err, &denied) {
		d.emit(taskid.Event{TaskID: taskID, Status: taskid.StatusWarn, Component: "song", Locked: denied.Lock})

		return nil
	}

	if err != nil {
		return fmt.Errorf("dispatcher: checkout song %q: %w", song.Name, err)
	}

	songDir := reconcile.SongDir(d.SourceDir, project.Name, song, d.Engine.NestedFolders)

	outcome, reconcileErr := d.Engine.ReconcileSong(ctx, projectID, song, songDir)

	if doneErr := handle.Done(ctx); doneErr != nil && reconcileErr == nil {
		return fmt.Errorf("dispatcher: release song lock for %q: %w", song.Name, doneErr)
	}

	if reconcileErr != nil {
		return fmt.Errorf("dispatcher: reconcile song %q: %w", song.Name, reconcileErr)
	}

	d.emit(taskid.Event{TaskID: taskID, Status: taskid.StatusProgress, Completed: outcome})

	return nil
}

func findSong(project metadata.Project, songID int) (metadata.Song, bool) {
	for _, s := range project.Songs {
		if s.ID == songID {
			return s, true
		}
	}

	return metadata.Song{}, false
}
