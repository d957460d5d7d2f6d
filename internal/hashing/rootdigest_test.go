package hashing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProjectRootEmptyWhenNoMatches(t *testing.T) {
	dir := t.TempDir()
	got, err := HashProjectRoot(dir, "*.cpr")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHashProjectRootChangesWithSessionFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.cpr")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	h1, err := HashProjectRoot(dir, "*.cpr")
	require.NoError(t, err)
	require.NotEmpty(t, h1)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	h2, err := HashProjectRoot(dir, "*.cpr")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashProjectRootIgnoresNonSessionFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.cpr"), []byte("v1"), 0o600))

	h1, err := HashProjectRoot(dir, "*.cpr")
	require.NoError(t, err)

	// Adding an unrelated audio file must not change the root digest.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "render.wav"), []byte("audio"), 0o600))

	h2, err := HashProjectRoot(dir, "*.cpr")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
