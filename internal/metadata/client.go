package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production control-API endpoint.
const DefaultBaseURL = "https://syncprojects.app/api/v1/"

const userAgent = "syncprojectsd/0.1"

// TokenStore persists the bearer token pair across process restarts. The
// concrete implementation lives in internal/state, adapting its
// auth_tokens table — defined here, at the consumer, per "accept
// interfaces, return structs."
type TokenStore interface {
	LoadToken(ctx context.Context) (*oauth2.Token, error)
	SaveToken(ctx context.Context, tok *oauth2.Token) error
}

// CredentialPrompter is the out-of-scope "user-prompt" capability
// (spec.md §1) invoked on a 401 to re-collect a username/password.
type CredentialPrompter interface {
	PromptCredentials(ctx context.Context) (username, password string, err error)
}

// Client is the bearer-token HTTPS client against the control API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	prompter   CredentialPrompter
	logger     *slog.Logger

	username string // cached after a successful login, used for re-login
}

// NewClient builds a Client. httpClient defaults to http.DefaultClient if nil.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenStore, prompter CredentialPrompter, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		prompter:   prompter,
		logger:     logger,
	}
}

// doJSON issues an authenticated request and decodes a JSON response into
// out (skipped if out is nil). It implements the transport policy from
// spec.md §4.2: bearer token in header; 401 re-prompts for credentials;
// 403 attempts exactly one refresh then retry; at most two attempts total.
// Connection failures are returned as ErrConnection-classified errors for
// the caller to surface and exit non-zero on.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.attempt(ctx, method, path, reqBody)
		if err != nil {
			lastErr = err

			var apiErr *APIError
			if !asAPIError(err, &apiErr) {
				return fmt.Errorf("metadata: %s %s: %w", method, path, err)
			}

			switch apiErr.StatusCode {
			case http.StatusUnauthorized:
				if reErr := c.reauthenticate(ctx); reErr != nil {
					return fmt.Errorf("metadata: re-authentication failed: %w", reErr)
				}

				continue
			case http.StatusForbidden:
				if rErr := c.Refresh(ctx); rErr != nil {
					return fmt.Errorf("metadata: token refresh failed: %w", rErr)
				}

				continue
			default:
				return err
			}
		}
		defer resp.Body.Close()

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("metadata: decode %s %s: %w", method, path, err)
			}
		}

		return nil
	}

	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, reqBody any) (*http.Response, error) {
	tok, err := c.tokens.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	var body io.Reader

	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if tok != nil && tok.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	return nil, classifyStatus(resp.StatusCode, string(respBody))
}

// reauthenticate re-prompts for credentials and logs in again.
func (c *Client) reauthenticate(ctx context.Context) error {
	if c.prompter == nil {
		return fmt.Errorf("%w: no credential prompt available", ErrUnauthorized)
	}

	username, password, err := c.prompter.PromptCredentials(ctx)
	if err != nil {
		return err
	}

	return c.Login(ctx, username, password)
}

func asAPIError(err error, target **APIError) bool {
	type unwrapper interface{ Unwrap() error }

	for e := err; e != nil; {
		if ae, ok := e.(*APIError); ok {
			*target = ae

			return true
		}

		u, ok := e.(unwrapper)
		if !ok {
			return false
		}

		e = u.Unwrap()
	}

	return false
}

func expiresAt(seconds int) time.Time {
	return time.Now().Add(time.Duration(seconds) * time.Second)
}

// publicAttempt issues a single unauthenticated request — used only by
// login/refresh, which by definition happen before a bearer token exists.
func (c *Client) publicAttempt(ctx context.Context, path string, reqBody any) (*http.Response, error) {
	var body io.Reader

	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	return nil, classifyStatus(resp.StatusCode, string(respBody))
}

func decodeJSON(resp *http.Response, out any) error {
	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("metadata: decode response: %w", err)
	}

	return nil
}
