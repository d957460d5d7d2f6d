package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/k3an3/syncprojectsd/internal/hashing"
	"github.com/k3an3/syncprojectsd/internal/state"
)

// debounce (re)starts the one-second size-stability wait for path
// (spec.md §4.8: "wait until the file's size has been stable for one
// second"). A later event for the same path cancels the previous timer —
// only the last debounce for a burst of writes actually uploads.
func (w *Watcher) debounce(ctx context.Context, path string) {
	w.mu.Lock()
	if cancel, ok := w.pending[path]; ok {
		close(cancel)
	}

	cancel := make(chan struct{})
	w.pending[path] = cancel
	w.mu.Unlock()

	go w.waitStableAndUpload(ctx, path, cancel)
}

func (w *Watcher) waitStableAndUpload(ctx context.Context, path string, cancel chan struct{}) {
	before, err := fileSize(path)
	if err != nil {
		// File vanished before we could size it (e.g. a renamed-away temp
		// file) — nothing to upload.
		return
	}

	select {
	case <-time.After(w.StableWait):
	case <-cancel:
		return
	case <-ctx.Done():
		return
	}

	w.mu.Lock()
	if w.pending[path] == cancel {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	after, err := fileSize(path)
	if err != nil || before != after {
		// Still growing, or disappeared — a subsequent Write event (if any)
		// will re-debounce; otherwise this render is abandoned.
		return
	}

	w.uploadIfChanged(ctx, path)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// uploadIfChanged hashes path, compares it against the last known hash for
// that path, and uploads to the audio bucket if the content changed and
// the minimum inter-upload interval has elapsed (spec.md §4.8).
func (w *Watcher) uploadIfChanged(ctx context.Context, path string) {
	hash, err := hashing.HashFile(path)
	if err != nil {
		w.Logger.Error("audio watcher: hashing failed", slog.String("path", path), slog.Any("error", err))

		return
	}

	existing, found, err := w.Store.GetAudioPathHash(path)
	if err != nil {
		w.Logger.Error("audio watcher: loading path hash failed", slog.String("path", path), slog.Any("error", err))

		return
	}

	if found && existing.Hash == hash {
		return
	}

	if found && time.Since(unixNano(existing.LastUploadAt)) < w.MinUploadInterval {
		w.Logger.Debug("audio watcher: skipping upload, within minimum interval", slog.String("path", path))

		return
	}

	project := projectNameForPath(path)
	key := project + "/" + filepath.Base(path)

	if err := w.ObjectStore.Upload(ctx, path, key); err != nil {
		w.Logger.Error("audio watcher: upload failed", slog.String("path", path), slog.String("key", key), slog.Any("error", err))

		return
	}

	now := time.Now()

	if err := w.Store.PutAudioPathHash(&state.AudioPathHash{Path: path, Hash: hash, LastUploadAt: now.UnixNano()}); err != nil {
		w.Logger.Error("audio watcher: recording path hash failed", slog.String("path", path), slog.Any("error", err))
	}

	if w.Notifier != nil {
		if err := w.Notifier.NotifyAudioSync(ctx, project, key); err != nil {
			w.Logger.Error("audio watcher: notifying metadata service failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	w.Logger.Info("audio watcher: uploaded render", slog.String("path", path), slog.String("key", key))
}

// handleRename records that oldPath was renamed away, keyed by its parent
// directory, so a Create event that follows shortly after in the same
// directory (fsnotify's usual pairing for an in-place rename) can be
// completed as a server-side copy+delete instead of a fresh upload.
func (w *Watcher) handleRename(oldPath string) {
	_, found, err := w.Store.GetAudioPathHash(oldPath)
	if err != nil || !found {
		return
	}

	dir := filepath.Dir(oldPath)
	rec := pendingRename{
		oldKey:   projectNameForPath(oldPath) + "/" + filepath.Base(oldPath),
		oldPath:  oldPath,
		deadline: time.Now().Add(renameGrace),
	}

	w.mu.Lock()
	w.lastSeen[dir] = rec
	w.mu.Unlock()

	time.AfterFunc(renameGrace, func() {
		w.mu.Lock()
		if current, ok := w.lastSeen[dir]; ok && current == rec {
			delete(w.lastSeen, dir)
		}
		w.mu.Unlock()
	})
}

// pairWithPendingRename completes a rename for newPath if a Rename event
// for a file in the same directory arrived within the grace window. Returns
// true if it took ownership of newPath (the caller should not also debounce
// it as a fresh upload).
func (w *Watcher) pairWithPendingRename(ctx context.Context, newPath string) bool {
	dir := filepath.Dir(newPath)

	w.mu.Lock()
	rec, ok := w.lastSeen[dir]
	if ok {
		delete(w.lastSeen, dir)
	}
	w.mu.Unlock()

	if !ok || time.Now().After(rec.deadline) {
		return false
	}

	go w.completeRename(ctx, rec, newPath)

	return true
}

func (w *Watcher) completeRename(ctx context.Context, rec pendingRename, newPath string) {
	oldPath := rec.oldPath
	newKey := projectNameForPath(newPath) + "/" + filepath.Base(newPath)

	if err := w.ObjectStore.Copy(ctx, rec.oldKey, newKey); err != nil {
		w.Logger.Error("audio watcher: rename copy failed", slog.String("old_key", rec.oldKey), slog.String("new_key", newKey), slog.Any("error", err))

		return
	}

	if err := w.ObjectStore.Delete(ctx, rec.oldKey); err != nil {
		w.Logger.Error("audio watcher: rename delete of old key failed", slog.String("old_key", rec.oldKey), slog.Any("error", err))
	}

	existing, found, err := w.Store.GetAudioPathHash(oldPath)
	if err == nil && found {
		if putErr := w.Store.PutAudioPathHash(&state.AudioPathHash{Path: newPath, Hash: existing.Hash, LastUploadAt: existing.LastUploadAt}); putErr != nil {
			w.Logger.Error("audio watcher: updating path hash after rename failed", slog.String("path", newPath), slog.Any("error", putErr))
		}
	}

	if delErr := w.Store.DeleteAudioPathHash(oldPath); delErr != nil {
		w.Logger.Error("audio watcher: clearing old path hash failed", slog.String("path", oldPath), slog.Any("error", delErr))
	}

	w.Logger.Info("audio watcher: renamed render", slog.String("old_key", rec.oldKey), slog.String("new_key", newKey))
}

// projectNameForPath derives the audio-bucket project name from a file's
// parent directory name (spec.md §6: "audio bucket: flat keys of the form
// <project_name>/<filename>"). Fragile across a user moving a file between
// project directories — spec.md §9 names this as an acknowledged open
// question, not fixed here.
func projectNameForPath(path string) string {
	return filepath.Base(filepath.Dir(path))
}

func unixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n)
}
