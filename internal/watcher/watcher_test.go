package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3an3/syncprojectsd/internal/objectstore"
	"github.com/k3an3/syncprojectsd/internal/state"
)

type fakeFsWatcher struct {
	events chan fsnotify.Event
	errs   chan error
	added  []string
}

func newFakeFsWatcher() *fakeFsWatcher {
	return &fakeFsWatcher{events: make(chan fsnotify.Event, 16), errs: make(chan error, 1)}
}

func (f *fakeFsWatcher) Add(name string) error         { f.added = append(f.added, name); return nil }
func (f *fakeFsWatcher) Remove(string) error            { return nil }
func (f *fakeFsWatcher) Close() error                   { return nil }
func (f *fakeFsWatcher) Events() <-chan fsnotify.Event  { return f.events }
func (f *fakeFsWatcher) Errors() <-chan error           { return f.errs }

type fakeObjectStore struct {
	mu       sync.Mutex
	uploaded map[string]string // key -> local path
	copied   []string
	deleted  []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{uploaded: make(map[string]string)}
}

func (f *fakeObjectStore) List(context.Context, string) ([]objectstore.Object, error) { return nil, nil }

func (f *fakeObjectStore) Upload(_ context.Context, localPath, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[key] = localPath

	return nil
}

func (f *fakeObjectStore) Download(context.Context, string, string) error { return nil }

func (f *fakeObjectStore) Copy(_ context.Context, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied = append(f.copied, src+"->"+dst)

	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)

	return nil
}

type fakePathStore struct {
	mu     sync.Mutex
	hashes map[string]*state.AudioPathHash
}

func newFakePathStore() *fakePathStore {
	return &fakePathStore{hashes: make(map[string]*state.AudioPathHash)}
}

func (s *fakePathStore) GetAudioPathHash(path string) (*state.AudioPathHash, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[path]

	return h, ok, nil
}

func (s *fakePathStore) PutAudioPathHash(h *state.AudioPathHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[h.Path] = h

	return nil
}

func (s *fakePathStore) DeleteAudioPathHash(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, path)

	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) NotifyAudioSync(context.Context, string, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++

	return nil
}

func TestUploadIfChanged_UploadsNewFile(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "MyProject")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	path := filepath.Join(projectDir, "render.wav")
	require.NoError(t, os.WriteFile(path, []byte("audio bytes"), 0o644))

	store := newFakeObjectStore()
	pathStore := newFakePathStore()
	notifier := &fakeNotifier{}

	w := New(dir, store, notifier, pathStore, nil)
	w.uploadIfChanged(context.Background(), path)

	assert.Equal(t, path, store.uploaded["MyProject/render.wav"])
	assert.Equal(t, 1, notifier.calls)

	h, found, err := pathStore.GetAudioPathHash(path)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, h.Hash)
}

func TestUploadIfChanged_SkipsUnchangedHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Proj", "render.wav")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("same bytes"), 0o644))

	store := newFakeObjectStore()
	pathStore := newFakePathStore()
	notifier := &fakeNotifier{}

	w := New(dir, store, notifier, pathStore, nil)
	w.uploadIfChanged(context.Background(), path)
	require.Len(t, store.uploaded, 1)

	// Same content, second pass: no new upload call tracked (map key stays len 1).
	w.uploadIfChanged(context.Background(), path)
	assert.Len(t, store.uploaded, 1)
	assert.Equal(t, 1, notifier.calls)
}

func TestUploadIfChanged_RespectsMinimumInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Proj", "render.wav")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	store := newFakeObjectStore()
	pathStore := newFakePathStore()
	notifier := &fakeNotifier{}

	w := New(dir, store, notifier, pathStore, nil)
	w.MinUploadInterval = time.Hour
	w.uploadIfChanged(context.Background(), path)
	require.Equal(t, 1, notifier.calls)

	require.NoError(t, os.WriteFile(path, []byte("v2, changed content"), 0o644))
	w.uploadIfChanged(context.Background(), path)

	// Content changed but within the minimum interval: no second upload.
	assert.Equal(t, 1, notifier.calls)
}

func TestHandleRename_PairsWithSubsequentCreate(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "Proj")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	oldPath := filepath.Join(projectDir, "old.wav")
	newPath := filepath.Join(projectDir, "new.wav")
	require.NoError(t, os.WriteFile(newPath, []byte("renamed"), 0o644))

	store := newFakeObjectStore()
	pathStore := newFakePathStore()
	require.NoError(t, pathStore.PutAudioPathHash(&state.AudioPathHash{Path: oldPath, Hash: "abc", LastUploadAt: 1}))

	w := New(dir, store, &fakeNotifier{}, pathStore, nil)
	w.handleRename(oldPath)

	paired := w.pairWithPendingRename(context.Background(), newPath)
	require.True(t, paired)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()

		return len(store.copied) == 1 && len(store.deleted) == 1
	}, time.Second, 10*time.Millisecond)

	_, foundOld, _ := pathStore.GetAudioPathHash(oldPath)
	assert.False(t, foundOld)

	hNew, foundNew, _ := pathStore.GetAudioPathHash(newPath)
	require.True(t, foundNew)
	assert.Equal(t, "abc", hNew.Hash)
}

func TestPairWithPendingRename_ExpiresAfterGrace(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "Proj", "old.wav")
	newPath := filepath.Join(dir, "Proj", "new.wav")

	store := newFakeObjectStore()
	pathStore := newFakePathStore()
	require.NoError(t, pathStore.PutAudioPathHash(&state.AudioPathHash{Path: oldPath, Hash: "abc"}))

	w := New(dir, store, &fakeNotifier{}, pathStore, nil)
	w.handleRename(oldPath)

	w.mu.Lock()
	rec := w.lastSeen[filepath.Dir(oldPath)]
	rec.deadline = time.Now().Add(-time.Second)
	w.lastSeen[filepath.Dir(oldPath)] = rec
	w.mu.Unlock()

	paired := w.pairWithPendingRename(context.Background(), newPath)
	assert.False(t, paired)
}
