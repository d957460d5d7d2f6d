// Package lockproto implements the cooperative locking protocol that
// serializes concurrent editors of a project or song (spec.md §4.5):
// request-then-inspect against the metadata service's lock endpoint, with
// silent override of expired locks and a user prompt for locks apparently
// left behind by a crashed run of this same program.
package lockproto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/k3an3/syncprojectsd/internal/metadata"
)

// ErrDenied means the lock is held by someone else and is not expired —
// the caller (a project sync) should warn and continue the batch, or (a
// song checkout) surface an error.
var ErrDenied = errors.New("lockproto: lock denied")

// DeniedError wraps ErrDenied with the server's lock payload, so a caller
// that needs to surface the holder's identity (spec.md §4.5 warn status,
// §8 scenario 5: "status:\"warn\" event with that lock payload") can
// extract it with errors.As.
type DeniedError struct {
	Lock metadata.Lock
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("lockproto: lock denied, held by %s since %s", e.Lock.LockedBy, e.Lock.Since)
}

func (e *DeniedError) Unwrap() error {
	return ErrDenied
}

// CrashPrompter is the "a prior sync crashed, proceed anyway?" capability
// (spec.md §4.5: "the user is prompted to proceed, override, or abort").
type CrashPrompter interface {
	PromptStaleLock(ctx context.Context, lock metadata.Lock) (proceed bool, err error)
}

// Locker is the subset of the metadata client this package depends on —
// defined at the consumer so lockproto can be tested against a fake.
type Locker interface {
	Lock(ctx context.Context, target metadata.LockTarget, opts metadata.LockOptions) (metadata.Lock, error)
	Unlock(ctx context.Context, target metadata.LockTarget, opts metadata.LockOptions) (metadata.Lock, error)
}

// Acquire requests target with reason and resolves the server's response
// into a simple granted/denied outcome, per the table in spec.md §4.5:
//   - a lock response carrying an id is a fresh grant.
//   - a past "until" is expired and is silently overridden with force.
//   - locked_by == "self" with no expiry means a prior run of this process
//     crashed while holding it; the user is asked whether to proceed.
//   - anything else held by another identity is ErrDenied.
func Acquire(ctx context.Context, locker Locker, target metadata.LockTarget, reason string, prompt CrashPrompter) (metadata.Lock, error) {
	lock, err := locker.Lock(ctx, target, metadata.LockOptions{Reason: reason})
	if err != nil {
		return metadata.Lock{}, fmt.Errorf("lockproto: request lock: %w", err)
	}

	if lock.ID != "" {
		return lock, nil
	}

	if lock.Status != "locked" {
		return metadata.Lock{}, fmt.Errorf("lockproto: unexpected lock status %q", lock.Status)
	}

	if lock.Until != nil && lock.Until.Before(time.Now()) {
		return forceAcquire(ctx, locker, target, reason)
	}

	if lock.LockedBy == "self" {
		if prompt == nil {
			return metadata.Lock{}, fmt.Errorf("%w: stale self-lock with no crash prompt available", ErrDenied)
		}

		proceed, err := prompt.PromptStaleLock(ctx, lock)
		if err != nil {
			return metadata.Lock{}, fmt.Errorf("lockproto: stale lock prompt: %w", err)
		}

		if !proceed {
			return metadata.Lock{}, &DeniedError{Lock: lock}
		}

		return forceAcquire(ctx, locker, target, reason)
	}

	return metadata.Lock{}, &DeniedError{Lock: lock}
}

func forceAcquire(ctx context.Context, locker Locker, target metadata.LockTarget, reason string) (metadata.Lock, error) {
	lock, err := locker.Lock(ctx, target, metadata.LockOptions{Reason: reason, Force: true})
	if err != nil {
		return metadata.Lock{}, fmt.Errorf("lockproto: force lock: %w", err)
	}

	return lock, nil
}

// Release unlocks target, ignoring an "already unlocked" outcome.
func Release(ctx context.Context, locker Locker, target metadata.LockTarget) error {
	_, err := locker.Unlock(ctx, target, metadata.LockOptions{})
	if err != nil {
		return fmt.Errorf("lockproto: release: %w", err)
	}

	return nil
}
