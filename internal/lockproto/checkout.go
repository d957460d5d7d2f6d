package lockproto

import (
	"context"
	"fmt"

	"github.com/k3an3/syncprojectsd/internal/metadata"
)

const reasonCheckedOut = "Checked out"

// SongHandle is returned by CheckOut; the song lock stays held across it so
// the caller may reconcile and then let the user edit. Done releases the
// song lock (the workdone handler's job, spec.md §4.6).
type SongHandle struct {
	Target metadata.LockTarget
	Lock   metadata.Lock
	locker Locker
}

// Done releases the song lock this handle represents.
func (h SongHandle) Done(ctx context.Context) error {
	return Release(ctx, h.locker, h.Target)
}

// CheckOut implements the workon sequence from spec.md §4.5: lock the
// parent project (serializing against other syncers), lock the song while
// the project lock is held, then release the project lock — the song lock
// outlives this call so the user can edit.
func CheckOut(ctx context.Context, locker Locker, projectID, songID int, prompt CrashPrompter) (SongHandle, error) {
	projectTarget := metadata.LockTarget{ProjectID: projectID}

	if _, err := Acquire(ctx, locker, projectTarget, "sync", prompt); err != nil {
		return SongHandle{}, fmt.Errorf("lockproto: checkout project lock: %w", err)
	}

	songTarget := metadata.LockTarget{ProjectID: projectID, SongID: songID}

	songLock, err := Acquire(ctx, locker, songTarget, reasonCheckedOut, prompt)
	if err != nil {
		if relErr := Release(ctx, locker, projectTarget); relErr != nil {
			return SongHandle{}, fmt.Errorf("lockproto: checkout song lock: %w (and release project lock: %v)", err, relErr)
		}

		return SongHandle{}, fmt.Errorf("lockproto: checkout song lock: %w", err)
	}

	if err := Release(ctx, locker, projectTarget); err != nil {
		return SongHandle{}, fmt.Errorf("lockproto: release project lock after checkout: %w", err)
	}

	return SongHandle{Target: songTarget, Lock: songLock, locker: locker}, nil
}
