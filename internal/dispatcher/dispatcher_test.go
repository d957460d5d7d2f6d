package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3an3/syncprojectsd/internal/config"
	"github.com/k3an3/syncprojectsd/internal/metadata"
	"github.com/k3an3/syncprojectsd/internal/objectstore"
	"github.com/k3an3/syncprojectsd/internal/reconcile"
	"github.com/k3an3/syncprojectsd/internal/state"
	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// fakeMetadata is an in-memory MetadataClient covering locks, projects, and
// the handful of account/update/log operations the dispatcher calls
// directly.
type fakeMetadata struct {
	mu sync.Mutex

	projects map[int]metadata.Project
	locks    map[string]metadata.Lock

	deniedTargets map[string]metadata.Lock

	updates    []metadata.Update
	loggedIn   bool
	ingested   bool
	uploadedAs string

	recordedSongIDs []int
}

func lockKey(t metadata.LockTarget) string {
	if t.SongID == 0 {
		return "project"
	}

	return "song"
}

func (f *fakeMetadata) Lock(ctx context.Context, target metadata.LockTarget, opts metadata.LockOptions) (metadata.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := lockKey(target)
	if denied, ok := f.deniedTargets[k]; ok && !opts.Force {
		return denied, nil
	}

	return metadata.Lock{ID: "lock-" + k, Status: "granted", LockedBy: "self"}, nil
}

func (f *fakeMetadata) Unlock(ctx context.Context, target metadata.LockTarget, opts metadata.LockOptions) (metadata.Lock, error) {
	return metadata.Lock{Status: "unlocked"}, nil
}

func (f *fakeMetadata) ListProjects(ctx context.Context) ([]metadata.Project, error) {
	var out []metadata.Project
	for _, p := range f.projects {
		out = append(out, p)
	}

	return out, nil
}

func (f *fakeMetadata) GetProject(ctx context.Context, id int) (metadata.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return metadata.Project{}, errors.New("no such project")
	}

	return p, nil
}

func (f *fakeMetadata) Login(ctx context.Context, username, password string) error {
	f.loggedIn = true

	return nil
}

func (f *fakeMetadata) IngestToken(ctx context.Context, accessToken, refreshToken string, expiresIn int) error {
	f.ingested = true

	return nil
}

func (f *fakeMetadata) WhoAmI(ctx context.Context) (string, error) {
	return "tester", nil
}

func (f *fakeMetadata) ListClientUpdates(ctx context.Context, hostTag string) ([]metadata.Update, error) {
	return f.updates, nil
}

func (f *fakeMetadata) UploadLog(ctx context.Context, filename string, data io.Reader) error {
	f.uploadedAs = filename

	_, err := io.ReadAll(data)

	return err
}

func (f *fakeMetadata) RecordSync(ctx context.Context, projectID int, songIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordedSongIDs = append(f.recordedSongIDs, songIDs...)

	return nil
}

func (f *fakeMetadata) RecordSyncWithNote(ctx context.Context, projectID, songID int, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordedSongIDs = append(f.recordedSongIDs, songID)

	return nil
}

// memStore is a minimal in-memory state.Store.
type memStore struct {
	mu    sync.Mutex
	songs map[string]*state.SongState
}

func newMemStore() *memStore { return &memStore{songs: map[string]*state.SongState{}} }

func (m *memStore) GetSongState(projectID, songID int64) (*state.SongState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.songs[stateKey(projectID, songID)]

	return s, ok, nil
}

func (m *memStore) PutSongState(s *state.SongState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.songs[stateKey(s.ProjectID, s.SongID)] = &cp

	return nil
}

func stateKey(projectID, songID int64) string {
	return fmt.Sprintf("%d:%d", projectID, songID)
}

func (m *memStore) GetSetting(k string) (string, bool, error)       { return "", false, nil }
func (m *memStore) PutSetting(k, v string) error                    { return nil }
func (m *memStore) GetAuthTokens() (*state.AuthTokens, bool, error) { return nil, false, nil }
func (m *memStore) PutAuthTokens(t *state.AuthTokens) error         { return nil }
func (m *memStore) GetAudioPathHash(p string) (*state.AudioPathHash, bool, error) {
	return nil, false, nil
}
func (m *memStore) PutAudioPathHash(h *state.AudioPathHash) error { return nil }
func (m *memStore) DeleteAudioPathHash(p string) error            { return nil }
func (m *memStore) Close() error                                  { return nil }

type fakeObjectStore struct{}

func (fakeObjectStore) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	return nil, nil
}
func (fakeObjectStore) Upload(ctx context.Context, localPath, key string) error   { return nil }
func (fakeObjectStore) Download(ctx context.Context, key, localPath string) error { return nil }
func (fakeObjectStore) Copy(ctx context.Context, srcKey, dstKey string) error     { return nil }
func (fakeObjectStore) Delete(ctx context.Context, key string) error             { return nil }

type fakeOpener struct {
	opened []string
}

func (o *fakeOpener) Open(path string) error {
	o.opened = append(o.opened, path)

	return nil
}

func newTestDispatcher(t *testing.T, meta *fakeMetadata) (*Dispatcher, string) {
	t.Helper()

	sourceDir := t.TempDir()

	engine := &reconcile.Engine{
		Store:       newMemStore(),
		ObjectStore: fakeObjectStore{},
		Metadata:    meta,
		ProjectGlob: "*.cpr",
		WorkerWidth: 2,
	}

	d := New(8)
	d.Metadata = meta
	d.Engine = engine
	d.SourceDir = sourceDir
	d.Opener = &fakeOpener{}

	return d, sourceDir
}

func writeSongFiles(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.cpr"), []byte("x"), 0o600))
}

func drainOne(t *testing.T, d *Dispatcher) taskid.Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := d.Drain()
		if len(events) > 0 {
			return events[0]
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("timed out waiting for event")

	return taskid.Event{}
}

func TestHandleAuth_IngestsTokenAndEmitsComplete(t *testing.T) {
	meta := &fakeMetadata{}
	d, _ := newTestDispatcher(t, meta)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{
		ID:   "t1",
		Kind: taskid.KindAuth,
		Data: map[string]any{"access_token": "a", "refresh_token": "r", "expires_in": float64(3600)},
	}))

	ev := drainOne(t, d)
	assert.Equal(t, taskid.StatusComplete, ev.Status)
	assert.True(t, meta.ingested)
}

func TestHandleWorkOnThenWorkDone_ReleasesHandoffLock(t *testing.T) {
	meta := &fakeMetadata{
		projects: map[int]metadata.Project{
			1: {ID: 1, Name: "proj", SyncEnabled: true, Songs: []metadata.Song{
				{ID: 2, Name: "song", SyncEnabled: true},
			}},
		},
	}
	d, sourceDir := newTestDispatcher(t, meta)
	writeSongFiles(t, filepath.Join(sourceDir, "proj", "song"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{
		ID:   "workon-1",
		Kind: taskid.KindWorkOn,
		Data: map[string]any{"song": map[string]any{"project": float64(1), "id": float64(2)}},
	}))

	ev := drainOne(t, d)
	require.Equal(t, taskid.StatusComplete, ev.Status)

	require.NoError(t, d.Submit(ctx, taskid.Task{
		ID:   "workdone-1",
		Kind: taskid.KindWorkDone,
		Data: map[string]any{"song": map[string]any{"project": float64(1), "id": float64(2)}},
	}))

	ev2 := drainOne(t, d)
	assert.Equal(t, taskid.StatusComplete, ev2.Status)

	_, stillCheckedOut := d.takeCheckedOut(2)
	assert.False(t, stillCheckedOut)
}

func TestHandleWorkOn_LockDeniedEmitsErrorWithLockPayload(t *testing.T) {
	meta := &fakeMetadata{
		projects: map[int]metadata.Project{
			1: {ID: 1, Name: "proj", SyncEnabled: true, Songs: []metadata.Song{
				{ID: 2, Name: "song", SyncEnabled: true},
			}},
		},
		deniedTargets: map[string]metadata.Lock{
			"project": {Status: "locked", LockedBy: "someoneelse", Since: time.Now()},
		},
	}
	d, sourceDir := newTestDispatcher(t, meta)
	writeSongFiles(t, filepath.Join(sourceDir, "proj", "song"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{
		ID:   "workon-2",
		Kind: taskid.KindWorkOn,
		Data: map[string]any{"song": map[string]any{"project": float64(1), "id": float64(2)}},
	}))

	ev := drainOne(t, d)
	assert.Equal(t, taskid.StatusError, ev.Status)

	lock, ok := ev.Locked.(metadata.Lock)
	require.True(t, ok)
	assert.Equal(t, "someoneelse", lock.LockedBy)
}

func TestHandleTasks_ReturnsOtherInFlightExcludingSelf(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeMetadata{})

	d.begin("other-task")
	defer d.end("other-task")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{ID: "self-task", Kind: taskid.KindTasks}))

	ev := drainOne(t, d)
	assert.Equal(t, taskid.StatusTasks, ev.Status)
	assert.Contains(t, ev.Tasks, "other-task")
	assert.NotContains(t, ev.Tasks, "self-task")
}

func TestHandleUpdate_NoNewerVersionReportsComplete(t *testing.T) {
	meta := &fakeMetadata{updates: []metadata.Update{{Version: "1.0.0"}}}
	d, _ := newTestDispatcher(t, meta)
	d.CurrentVersion = "1.0.0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{ID: "update-1", Kind: taskid.KindUpdate}))

	ev := drainOne(t, d)
	assert.Equal(t, taskid.StatusComplete, ev.Status)
}

type fakeUpdater struct {
	applied bool
	version string
}

func (u *fakeUpdater) Apply(ctx context.Context, version, url string) error {
	u.applied = true
	u.version = version

	return nil
}

func TestHandleUpdate_NewerVersionInvokesUpdater(t *testing.T) {
	meta := &fakeMetadata{updates: []metadata.Update{{Version: "2.0.0", URL: "https://example.invalid/pkg"}}}
	d, _ := newTestDispatcher(t, meta)
	d.CurrentVersion = "1.0.0"
	updater := &fakeUpdater{}
	d.Updater = updater

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{ID: "update-2", Kind: taskid.KindUpdate}))

	// Updater.Apply returns nil in this fake so no error event is emitted;
	// give the goroutine a moment to run before asserting.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !updater.applied {
		time.Sleep(5 * time.Millisecond)
	}

	assert.True(t, updater.applied)
	assert.Equal(t, "2.0.0", updater.version)
}

func TestHandleLogs_UploadsZippedLogFile(t *testing.T) {
	meta := &fakeMetadata{}
	d, _ := newTestDispatcher(t, meta)

	logPath := filepath.Join(t.TempDir(), "daemon.log")
	require.NoError(t, os.WriteFile(logPath, []byte("log line one\n"), 0o600))
	d.LogPath = logPath

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{ID: "logs-1", Kind: taskid.KindLogs}))

	ev := drainOne(t, d)
	assert.Equal(t, taskid.StatusComplete, ev.Status)
	assert.NotEmpty(t, meta.uploadedAs)
}

func TestHandleSettings_ReturnsConfigSnapshot(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeMetadata{})
	d.Settings = &config.Config{Sync: config.SyncConfig{SourceDir: "/music"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, taskid.Task{ID: "settings-1", Kind: taskid.KindSettings}))

	ev := drainOne(t, d)
	assert.Equal(t, taskid.StatusComplete, ev.Status)

	cfg, ok := ev.Completed.(*config.Config)
	require.True(t, ok)
	assert.Equal(t, "/music", cfg.Sync.SourceDir)
}

func TestHandleShutdown_StopsRunLoop(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeMetadata{})

	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.NoError(t, d.Submit(ctx, taskid.Task{ID: "shutdown-1", Kind: taskid.KindShutdown}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown task")
	}
}
