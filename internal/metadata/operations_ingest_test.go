package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestIngestToken_PersistsAndRefreshesUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Username string `json:"username"`
		}{Username: "bob"})
	}))
	defer srv.Close()

	store := &memTokenStore{}
	client := NewClient(srv.URL+"/", nil, store, nil, nil)

	err := client.IngestToken(context.Background(), "access1", "refresh1", 3600)
	require.NoError(t, err)

	assert.Equal(t, "access1", store.tok.AccessToken)

	name, err := client.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
}

func TestIngestToken_ClearsPriorCachedUsername(t *testing.T) {
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Username string `json:"username"`
		}{Username: "new-user"})
	}))
	defer srv.Close()

	store := &memTokenStore{tok: &oauth2.Token{AccessToken: "old"}}
	client := NewClient(srv.URL+"/", nil, store, nil, nil)
	client.username = "old-user"

	err := client.IngestToken(context.Background(), "access2", "refresh2", 3600)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	name, err := client.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-user", name)
	assert.Equal(t, 1, calls)
}
