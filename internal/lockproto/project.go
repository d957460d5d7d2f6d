package lockproto

import (
	"context"
	"fmt"

	"github.com/k3an3/syncprojectsd/internal/metadata"
)

// WithProjectLock implements the project-sync sequence from spec.md §4.5:
// request a project lock, run fn while held, and release it unconditionally
// afterward. A denied lock returns ErrDenied without calling fn — the sync
// handler is expected to emit a warn status for this project and continue
// on to the next one in the batch.
func WithProjectLock(ctx context.Context, locker Locker, projectID int, prompt CrashPrompter, fn func(ctx context.Context) error) error {
	target := metadata.LockTarget{ProjectID: projectID}

	if _, err := Acquire(ctx, locker, target, "sync", prompt); err != nil {
		return err
	}

	fnErr := fn(ctx)

	if relErr := Release(ctx, locker, target); relErr != nil {
		if fnErr != nil {
			return fmt.Errorf("%w (and release lock: %v)", fnErr, relErr)
		}

		return fmt.Errorf("lockproto: release project lock: %w", relErr)
	}

	return fnErr
}
