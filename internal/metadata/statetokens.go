package metadata

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/k3an3/syncprojectsd/internal/state"
)

// StateTokenStore adapts internal/state's single-row auth_tokens table to
// the TokenStore interface, so the bearer token pair survives process
// restarts (spec.md §3 "Lifecycle": SongState persists for the life of the
// installation — the same durability applies to the cached token).
type StateTokenStore struct {
	store state.Store
}

var _ TokenStore = (*StateTokenStore)(nil)

// NewStateTokenStore wraps store.
func NewStateTokenStore(store state.Store) *StateTokenStore {
	return &StateTokenStore{store: store}
}

func (s *StateTokenStore) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	tokens, found, err := s.store.GetAuthTokens()
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Unix(tokens.ExpiryUnix, 0),
	}, nil
}

func (s *StateTokenStore) SaveToken(ctx context.Context, tok *oauth2.Token) error {
	existing, _, err := s.store.GetAuthTokens()
	if err != nil {
		return err
	}

	username := ""
	if existing != nil {
		username = existing.Username
	}

	return s.store.PutAuthTokens(&state.AuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiryUnix:   tok.Expiry.Unix(),
		Username:     username,
	})
}

// SetUsername updates the cached username without touching the token pair.
func (s *StateTokenStore) SetUsername(username string) error {
	existing, found, err := s.store.GetAuthTokens()
	if err != nil {
		return err
	}

	if !found {
		existing = &state.AuthTokens{}
	}

	existing.Username = username

	return s.store.PutAuthTokens(existing)
}
