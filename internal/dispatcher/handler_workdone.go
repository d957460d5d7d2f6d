package dispatcher

import (
	"context"
	"fmt"

	"github.com/k3an3/syncprojectsd/internal/reconcile"
	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// handleWorkDone implements spec.md §4.6 "workdone": reconcile the single
// song (optionally forcing REMOTE via "undo" to discard local changes),
// unlock it, emit complete.
func (d *Dispatcher) handleWorkDone(ctx context.Context, task taskid.Task) error {
	songRef, err := requireMapField(task.Data, "song")
	if err != nil {
		return fmt.Errorf("dispatcher: workdone: %w", err)
	}

	projectID := intField(songRef, "project")
	songID := intField(songRef, "id")
	undo := boolField(task.Data, "undo")

	project, err := d.Metadata.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("dispatcher: fetch project %d: %w", projectID, err)
	}

	song, ok := findSong(project, songID)
	if !ok {
		return fmt.Errorf("dispatcher: song %d not found in project %d", songID, projectID)
	}

	songDir := reconcile.SongDir(d.SourceDir, project.Name, song, d.Engine.NestedFolders)

	var (
		outcome reconcile.Outcome
		recErr  error
	)

	if undo {
		outcome, recErr = d.Engine.ReconcileSongForced(ctx, projectID, song, songDir, reconcile.REMOTE)
	} else {
		outcome, recErr = d.Engine.ReconcileSong(ctx, projectID, song, songDir)
	}

	handle, wasCheckedOut := d.takeCheckedOut(songID)
	if wasCheckedOut {
		if doneErr := handle.Done(ctx); doneErr != nil {
			if recErr != nil {
				return fmt.Errorf("%w (and release song lock: %v)", recErr, doneErr)
			}

			return fmt.Errorf("dispatcher: release song lock for %q: %w", song.Name, doneErr)
		}
	}

	if recErr != nil {
		return fmt.Errorf("dispatcher: reconcile song %q: %w", song.Name, recErr)
	}

	d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete, Completed: outcome})

	return nil
}
