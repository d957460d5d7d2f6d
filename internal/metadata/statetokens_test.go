package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/k3an3/syncprojectsd/internal/state"
)

type memAuthStore struct {
	tokens *state.AuthTokens
}

func (m *memAuthStore) GetSongState(projectID, songID int64) (*state.SongState, bool, error) {
	return nil, false, nil
}
func (m *memAuthStore) PutSongState(s *state.SongState) error { return nil }
func (m *memAuthStore) GetSetting(k string) (string, bool, error)  { return "", false, nil }
func (m *memAuthStore) PutSetting(k, v string) error               { return nil }

func (m *memAuthStore) GetAuthTokens() (*state.AuthTokens, bool, error) {
	if m.tokens == nil {
		return nil, false, nil
	}

	cp := *m.tokens

	return &cp, true, nil
}

func (m *memAuthStore) PutAuthTokens(t *state.AuthTokens) error {
	cp := *t
	m.tokens = &cp

	return nil
}

func (m *memAuthStore) GetAudioPathHash(p string) (*state.AudioPathHash, bool, error) {
	return nil, false, nil
}
func (m *memAuthStore) PutAudioPathHash(h *state.AudioPathHash) error { return nil }
func (m *memAuthStore) DeleteAudioPathHash(p string) error            { return nil }
func (m *memAuthStore) Close() error                                  { return nil }

func TestStateTokenStore_RoundTripPreservesUsername(t *testing.T) {
	store := &memAuthStore{}
	ts := NewStateTokenStore(store)

	require.NoError(t, ts.SetUsername("alice"))
	require.NoError(t, ts.SaveToken(context.Background(), &oauth2.Token{
		AccessToken:  "tok",
		RefreshToken: "ref",
		Expiry:       time.Now().Add(time.Hour),
	}))

	got, err := ts.LoadToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
	assert.Equal(t, "alice", store.tokens.Username)
}

func TestStateTokenStore_LoadWithNoTokensReturnsNil(t *testing.T) {
	store := &memAuthStore{}
	ts := NewStateTokenStore(store)

	got, err := ts.LoadToken(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
