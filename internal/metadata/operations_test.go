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

func TestRecordSync_PostsSongIDs(t *testing.T) {
	var gotBody struct {
		SongIDs []int `json:"song_ids"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/42/sync/", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := &memTokenStore{tok: &oauth2.Token{AccessToken: "tok"}}
	client := NewClient(srv.URL+"/", nil, store, nil, nil)

	err := client.RecordSync(context.Background(), 42, []int{7, 8})
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, gotBody.SongIDs)
}

func TestGetObjectStoreCredentials_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ObjectStoreCredentials{
			AccessKeyID:     "AKID",
			SecretAccessKey: "secret",
			Region:          "us-east-1",
			Bucket:          "songs-bucket",
		})
	}))
	defer srv.Close()

	store := &memTokenStore{tok: &oauth2.Token{AccessToken: "tok"}}
	client := NewClient(srv.URL+"/", nil, store, nil, nil)

	creds, err := client.GetObjectStoreCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, "songs-bucket", creds.Bucket)
}

func TestListClientUpdates_FiltersByHostTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "darwin-arm64", r.URL.Query().Get("host"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Update{{Version: "1.2.0"}})
	}))
	defer srv.Close()

	store := &memTokenStore{tok: &oauth2.Token{AccessToken: "tok"}}
	client := NewClient(srv.URL+"/", nil, store, nil, nil)

	updates, err := client.ListClientUpdates(context.Background(), "darwin-arm64")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "1.2.0", updates[0].Version)
}
