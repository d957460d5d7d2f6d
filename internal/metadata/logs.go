package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadLog posts a zipped log blob to the control API's logs/ endpoint
// (spec.md §4.6 "logs" handler, §6 resource path "logs/"). Transport
// failures are returned as-is; unlike doJSON this does not retry on
// 401/403, since the logs handler runs only after a prior authenticated
// operation has already established a valid session in this process.
func (c *Client) UploadLog(ctx context.Context, filename string, data io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("log", filename)
	if err != nil {
		return fmt.Errorf("metadata: build log upload: %w", err)
	}

	if _, err := io.Copy(part, data); err != nil {
		return fmt.Errorf("metadata: read log body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("metadata: close log upload: %w", err)
	}

	tok, err := c.tokens.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("metadata: load token for log upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"logs/", &buf)
	if err != nil {
		return fmt.Errorf("metadata: build log upload request: %w", err)
	}

	if tok != nil && tok.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)

		return classifyStatus(resp.StatusCode, string(body))
	}

	return nil
}
