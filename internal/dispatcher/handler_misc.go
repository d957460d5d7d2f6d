package dispatcher

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// handleTasks returns the set of other in-flight task ids (spec.md §4.6
// "tasks").
func (d *Dispatcher) handleTasks(ctx context.Context, task taskid.Task) error {
	d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusTasks, Tasks: d.InFlightTasks(task.ID)})

	return nil
}

// handleUpdate consults the update feed and, if a newer version exists,
// invokes the external updater (spec.md §4.6 "update"). A successful apply
// does not return control to this handler — Updater.Apply exits the
// process itself.
func (d *Dispatcher) handleUpdate(ctx context.Context, task taskid.Task) error {
	updates, err := d.Metadata.ListClientUpdates(ctx, d.HostTag)
	if err != nil {
		return fmt.Errorf("dispatcher: list client updates: %w", err)
	}

	if len(updates) == 0 || updates[0].Version == d.CurrentVersion {
		d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete, Message: "already up to date"})

		return nil
	}

	if d.Updater == nil {
		return fmt.Errorf("dispatcher: update available (%s) but no updater configured", updates[0].Version)
	}

	return d.Updater.Apply(ctx, updates[0].Version, updates[0].URL)
}

// handleLogs zips the current log file and uploads it to the metadata
// service (spec.md §4.6 "logs").
func (d *Dispatcher) handleLogs(ctx context.Context, task taskid.Task) error {
	if d.LogPath == "" {
		return fmt.Errorf("dispatcher: logs: no log file path configured")
	}

	data, err := os.ReadFile(d.LogPath)
	if err != nil {
		return fmt.Errorf("dispatcher: logs: read log file: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entryName := fmt.Sprintf("%s-%d.log", filepath.Base(d.LogPath), time.Now().Unix())

	w, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("dispatcher: logs: build zip entry: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("dispatcher: logs: write zip entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("dispatcher: logs: finalize zip: %w", err)
	}

	if err := d.Metadata.UploadLog(ctx, entryName+".zip", &buf); err != nil {
		return fmt.Errorf("dispatcher: logs: upload: %w", err)
	}

	d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete})

	return nil
}

// handleSettings returns the daemon's resolved configuration snapshot. The
// original dispatch table names a "settings" handler but its behavior was
// never implemented upstream (commands.SettingsHandler has no surviving
// definition in original_source) — read-only reporting of the resolved
// config is the conservative interpretation consistent with the /api/settings
// route's lack of a request payload (spec.md §4.7 table).
func (d *Dispatcher) handleSettings(ctx context.Context, task taskid.Task) error {
	if d.Settings == nil {
		return fmt.Errorf("dispatcher: settings: no resolved config available")
	}

	d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete, Completed: d.Settings})

	return nil
}
