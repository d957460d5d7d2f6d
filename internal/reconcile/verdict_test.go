package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/k3an3/syncprojectsd/internal/metadata"
	"github.com/k3an3/syncprojectsd/internal/state"
)

func TestComputeVerdict_NoLocalCopyIsRemote(t *testing.T) {
	v := ComputeVerdict(state.SongState{Revision: 3, KnownHash: "a"}, metadata.Song{Revision: 3}, "")
	assert.Equal(t, REMOTE, v)
}

func TestComputeVerdict_SameRevisionUnchangedIsNone(t *testing.T) {
	v := ComputeVerdict(state.SongState{Revision: 3, KnownHash: "a"}, metadata.Song{Revision: 3}, "a")
	assert.Equal(t, NONE, v)
}

func TestComputeVerdict_SameRevisionChangedIsLocal(t *testing.T) {
	v := ComputeVerdict(state.SongState{Revision: 3, KnownHash: "a"}, metadata.Song{Revision: 3}, "b")
	assert.Equal(t, LOCAL, v)
}

func TestComputeVerdict_RemoteNewerUnchangedIsRemote(t *testing.T) {
	v := ComputeVerdict(state.SongState{Revision: 3, KnownHash: "a"}, metadata.Song{Revision: 5}, "a")
	assert.Equal(t, REMOTE, v)
}

func TestComputeVerdict_RemoteNewerChangedIsConflict(t *testing.T) {
	v := ComputeVerdict(state.SongState{Revision: 3, KnownHash: "a"}, metadata.Song{Revision: 5}, "b")
	assert.Equal(t, CONFLICT, v)
}

func TestComputeVerdict_LocalRevisionNewerIsLocal(t *testing.T) {
	v := ComputeVerdict(state.SongState{Revision: 5, KnownHash: "a"}, metadata.Song{Revision: 3}, "anything")
	assert.Equal(t, LOCAL, v)
}
