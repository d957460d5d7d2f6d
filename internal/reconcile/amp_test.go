package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3an3/syncprojectsd/internal/objectstore"
)

func TestSyncAmpPresets_PushesLocalAndPullsRemote(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local-only.nfp"), []byte("preset"), 0o600))

	store := &fakeStore{objects: []objectstore.Object{
		{Key: "42/Amp Settings/remote-only.nfp", ETag: "etag1"},
	}}

	result, err := SyncAmpPresets(context.Background(), store, dir, 42, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Transferred)
	assert.Equal(t, 0, result.Failed)
	assert.Contains(t, store.uploaded, "42/Amp Settings/local-only.nfp")
	assert.Contains(t, store.downloads, "42/Amp Settings/remote-only.nfp")
}
