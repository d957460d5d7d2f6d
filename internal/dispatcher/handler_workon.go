package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/k3an3/syncprojectsd/internal/lockproto"
	"github.com/k3an3/syncprojectsd/internal/reconcile"
	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// handleWorkOn implements spec.md §4.6 "workon": lock song, reconcile, keep
// the lock held, open the newest session file, emit complete. The song
// lock is handed off to handleWorkDone via d.checkedOut.
func (d *Dispatcher) handleWorkOn(ctx context.Context, task taskid.Task) error {
	songRef, err := requireMapField(task.Data, "song")
	if err != nil {
		return fmt.Errorf("dispatcher: workon: %w", err)
	}

	projectID := intField(songRef, "project")
	songID := intField(songRef, "id")

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
		d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusError, Component: "song", Locked: denied.Lock})

		return nil
	}

	if err != nil {
		return fmt.Errorf("dispatcher: checkout song %q: %w", song.Name, err)
	}

	songDir := reconcile.SongDir(d.SourceDir, project.Name, song, d.Engine.NestedFolders)

	outcome, err := d.Engine.ReconcileSong(ctx, projectID, song, songDir)
	if err != nil {
		_ = handle.Done(ctx)

		return fmt.Errorf("dispatcher: reconcile song %q: %w", song.Name, err)
	}

	d.putCheckedOut(songID, handle)

	sessionFile, findErr := newestSessionFile(songDir, d.Engine.ProjectGlob)
	if findErr == nil && sessionFile != "" && d.Opener != nil {
		if openErr := d.Opener.Open(sessionFile); openErr != nil {
			d.logger().Warn("failed to open session file", "song", song.Name, "error", openErr)
		}
	}

	d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete, Completed: outcome})

	return nil
}

// newestSessionFile returns the most recently modified file matching glob
// directly under dir, by modification time (spec.md §4.6: "resolve the
// newest session file by modification time under the song directory").
func newestSessionFile(dir, glob string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return "", err
	}

	var (
		newest     string
		newestTime int64
	)

	for _, m := range matches {
		info, statErr := os.Stat(m)
		if statErr != nil {
			continue
		}

		if mtime := info.ModTime().UnixNano(); mtime > newestTime {
			newestTime = mtime
			newest = m
		}
	}

	return newest, nil
}
