package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3an3/syncprojectsd/internal/objectstore"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   []objectstore.Object
	uploaded  []string
	downloads []string
	failKeys  map[string]bool
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	return f.objects, nil
}

func (f *fakeStore) Upload(ctx context.Context, localPath, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failKeys[key] {
		return errors.New("boom")
	}

	f.uploaded = append(f.uploaded, key)

	return nil
}

func (f *fakeStore) Download(ctx context.Context, key, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failKeys[key] {
		return errors.New("boom")
	}

	f.downloads = append(f.downloads, key)

	return nil
}

func (f *fakeStore) Copy(ctx context.Context, srcKey, dstKey string) error { return nil }
func (f *fakeStore) Delete(ctx context.Context, key string) error         { return nil }

func TestRemoteManifest_StripsPrefix(t *testing.T) {
	store := &fakeStore{objects: []objectstore.Object{
		{Key: "1/2/kick.wav", ETag: "abc"},
		{Key: "1/2/sub/snare.wav", ETag: "def"},
	}}

	manifest, err := RemoteManifest(context.Background(), store, "1/2/")
	require.NoError(t, err)
	assert.Equal(t, "abc", manifest["kick.wav"])
	assert.Equal(t, "def", manifest["sub/snare.wav"])
}

func TestRunTransfers_UploadsAllKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.wav"), []byte("y"), 0o600))

	store := &fakeStore{failKeys: map[string]bool{}}

	result := RunTransfers(context.Background(), store, dir, "1/2/", []string{"a.wav", "b.wav"}, Upload, 4)
	assert.Equal(t, 2, result.Transferred)
	assert.Equal(t, 0, result.Failed)
	assert.ElementsMatch(t, []string{"1/2/a.wav", "1/2/b.wav"}, store.uploaded)
}

func TestRunTransfers_FailedTransferCountedNotAborted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.wav"), []byte("y"), 0o600))

	store := &fakeStore{failKeys: map[string]bool{"1/2/a.wav": true}}

	result := RunTransfers(context.Background(), store, dir, "1/2/", []string{"a.wav", "b.wav"}, Upload, 4)
	assert.Equal(t, 1, result.Transferred)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
}

func TestRunTransfers_SerialWhenWidthIsOne(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), []byte("x"), 0o600))

	store := &fakeStore{}

	result := RunTransfers(context.Background(), store, dir, "1/2/", []string{"a.wav"}, Download, 1)
	assert.Equal(t, 1, result.Transferred)
	assert.Equal(t, []string{"1/2/a.wav"}, store.downloads)
}
