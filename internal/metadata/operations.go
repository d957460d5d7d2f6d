package metadata

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ListProjects returns every project visible to the authenticated user.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.doJSON(ctx, http.MethodGet, "projects", nil, &projects); err != nil {
		return nil, err
	}

	return projects, nil
}

// GetProject fetches a single project, including its current songs.
func (c *Client) GetProject(ctx context.Context, id int) (Project, error) {
	var project Project
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("projects/%d", id), nil, &project); err != nil {
		return Project{}, err
	}

	return project, nil
}

type lockRequest struct {
	Force  bool   `json:"force,omitempty"`
	Reason string `json:"reason,omitempty"`
	Until  string `json:"until,omitempty"`
	SongID int    `json:"song_id,omitempty"`
}

func buildLockRequest(target LockTarget, opts LockOptions) lockRequest {
	req := lockRequest{
		Force:  opts.Force,
		Reason: opts.Reason,
	}

	if target.SongID != 0 {
		req.SongID = target.SongID
	}

	if opts.Until != nil {
		req.Until = opts.Until.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	return req
}

// Lock requests a lock on a project or, when target.SongID is set, a song
// within it — submitted against the containing project (spec.md §4.2).
func (c *Client) Lock(ctx context.Context, target LockTarget, opts LockOptions) (Lock, error) {
	var lock Lock

	path := fmt.Sprintf("projects/%d/lock/", target.ProjectID)
	if err := c.doJSON(ctx, http.MethodPut, path, buildLockRequest(target, opts), &lock); err != nil {
		return Lock{}, err
	}

	return lock, nil
}

// Unlock releases a lock previously obtained with Lock.
func (c *Client) Unlock(ctx context.Context, target LockTarget, opts LockOptions) (Lock, error) {
	var lock Lock

	path := fmt.Sprintf("projects/%d/lock/", target.ProjectID)
	if err := c.doJSON(ctx, http.MethodDelete, path, buildLockRequest(target, opts), &lock); err != nil {
		return Lock{}, err
	}

	return lock, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Login exchanges a username/password for a fresh bearer token pair and
// persists it via the configured TokenStore.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp tokenResponse

	if err := c.postPublic(ctx, "auth/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return fmt.Errorf("metadata: login: %w", err)
	}

	c.username = username

	return c.tokens.SaveToken(ctx, &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiresAt(resp.ExpiresIn),
	})
}

// Refresh exchanges the stored refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	tok, err := c.tokens.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("metadata: load token for refresh: %w", err)
	}

	if tok == nil || tok.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token available", ErrUnauthorized)
	}

	var resp tokenResponse
	if err := c.postPublic(ctx, "auth/refresh", struct {
		RefreshToken string `json:"refresh_token"`
	}{RefreshToken: tok.RefreshToken}, &resp); err != nil {
		return fmt.Errorf("metadata: refresh: %w", err)
	}

	return c.tokens.SaveToken(ctx, &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiresAt(resp.ExpiresIn),
	})
}

// IngestToken persists a bearer/refresh token pair obtained out-of-band (the
// local HTTP endpoint's /api/auth route, which receives tokens the
// companion web UI already minted) and refreshes the cached username
// (spec.md §4.6 "auth" handler: "ingest tokens, persist, refresh cached
// username").
func (c *Client) IngestToken(ctx context.Context, accessToken, refreshToken string, expiresIn int) error {
	if err := c.tokens.SaveToken(ctx, &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       expiresAt(expiresIn),
	}); err != nil {
		return fmt.Errorf("metadata: ingest token: %w", err)
	}

	c.username = ""

	_, err := c.WhoAmI(ctx)

	return err
}

// WhoAmI returns the authenticated username, lazily, caching the value from
// the last successful Login for the life of the process.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	if c.username != "" {
		return c.username, nil
	}

	var resp struct {
		Username string `json:"username"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "auth/whoami", nil, &resp); err != nil {
		return "", err
	}

	c.username = resp.Username

	return c.username, nil
}

// ListClientUpdates fetches the client-update feed filtered to hostTag
// (e.g. "darwin-arm64").
func (c *Client) ListClientUpdates(ctx context.Context, hostTag string) ([]Update, error) {
	var updates []Update
	if err := c.doJSON(ctx, http.MethodGet, "updates?host="+hostTag, nil, &updates); err != nil {
		return nil, err
	}

	return updates, nil
}

// RecordSync posts a sync receipt after a successful local→remote transfer
// for one or more songs in a project.
func (c *Client) RecordSync(ctx context.Context, projectID int, songIDs []int) error {
	body := struct {
		SongIDs []int `json:"song_ids"`
	}{SongIDs: songIDs}

	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("projects/%d/sync/", projectID), body, nil)
}

// RecordSyncWithNote posts a single-song sync receipt carrying a changelog
// note as a sidecar field (SPEC_FULL.md supplemented feature, grounded on
// original_source/syncprojects/operations.py:changelog).
func (c *Client) RecordSyncWithNote(ctx context.Context, projectID, songID int, note string) error {
	body := struct {
		SongIDs []int  `json:"song_ids"`
		Note    string `json:"note,omitempty"`
	}{SongIDs: []int{songID}, Note: note}

	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("projects/%d/sync/", projectID), body, nil)
}

// NotifyAudioSync tells the metadata service that an ad-hoc audio render
// was uploaded to the audio bucket for projectName (spec.md §4.8: "notify
// the metadata service that an audio sync occurred"). Called from the audio
// watcher's own goroutine rather than the dispatcher, so it must be
// idempotent — a duplicate notification for the same key is harmless.
func (c *Client) NotifyAudioSync(ctx context.Context, projectName, key string) error {
	body := struct {
		Project string `json:"project"`
		Key     string `json:"key"`
	}{Project: projectName, Key: key}

	return c.doJSON(ctx, http.MethodPost, "audio-syncs/", body, nil)
}

// GetObjectStoreCredentials vends short-lived or static credentials for the
// object store, to be handed to internal/objectstore.LoadAWSConfig.
func (c *Client) GetObjectStoreCredentials(ctx context.Context) (ObjectStoreCredentials, error) {
	var creds ObjectStoreCredentials
	if err := c.doJSON(ctx, http.MethodGet, "credentials/object-store", nil, &creds); err != nil {
		return ObjectStoreCredentials{}, err
	}

	return creds, nil
}

// postPublic issues an unauthenticated POST (login/refresh never carry a
// bearer token) and decodes the JSON response into out.
func (c *Client) postPublic(ctx context.Context, path string, reqBody, out any) error {
	resp, err := c.publicAttempt(ctx, path, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp, out)
}
