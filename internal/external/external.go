// Package external declares the thin capability interfaces the rest of the
// daemon depends on for anything that crosses outside the process boundary
// in a way that must be mockable in tests: user-facing prompts, the
// self-update mechanism, and error reporting. Concrete implementations live
// elsewhere (a TUI, a desktop notifier, a Sentry-style client); this package
// exists so internal/dispatcher and internal/reconcile can depend on an
// interface rather than a concrete UI toolkit, mirroring the teacher's
// "accept interfaces, return structs" pattern used for graph.TokenSource.
package external

import "context"

// Updater fetches and applies a newer daemon release, per spec.md §4.6
// "update" handler: on a newer version being available, invoke the updater
// with the fetched package and exit.
type Updater interface {
	// Apply downloads and installs the given version from url, then exits
	// the process on success. Returns an error only on failure to fetch or
	// install; a successful apply does not return.
	Apply(ctx context.Context, version, url string) error
}

// ErrorReporter forwards an unexpected handler error to an external
// error-tracking service, per spec.md §7 "Programmer error" and §4.6's
// "in non-debug mode, forward to the error-reporting capability."
type ErrorReporter interface {
	Report(ctx context.Context, err error, taskID string)
}

// DAWChecker reports whether a configured DAW process is currently running,
// used by the TUI sync flow to warn (non-fatally) before hashing session
// files that might still be open for writing (SPEC_FULL.md supplemented
// feature, grounded on original_source's utils.py:check_daw_running).
type DAWChecker interface {
	IsRunning() (bool, error)
}

// FileOpener opens a file with the OS default application, used by the
// workon handler to open the newest session file under a checked-out song.
type FileOpener interface {
	Open(path string) error
}
