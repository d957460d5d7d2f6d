package dispatcher

import (
	"context"

	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// handleAuth ingests a token pair from the payload, persists it, and
// refreshes the cached username (spec.md §4.6 "auth").
func (d *Dispatcher) handleAuth(ctx context.Context, task taskid.Task) error {
	accessToken := stringField(task.Data, "access_token")
	refreshToken := stringField(task.Data, "refresh_token")
	expiresIn := intField(task.Data, "expires_in")

	if err := d.Metadata.IngestToken(ctx, accessToken, refreshToken, expiresIn); err != nil {
		return err
	}

	d.emit(taskid.Event{TaskID: task.ID, Status: taskid.StatusComplete})

	return nil
}
