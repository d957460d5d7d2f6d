package metadata

import "errors"

// Sentinel errors classified from HTTP status codes. Callers use errors.Is.
var (
	// ErrUnauthorized means the access token is missing or permanently
	// invalid — the transport re-prompts for credentials rather than
	// retrying (spec.md §4.2: "on 401 re-prompt the user for credentials").
	ErrUnauthorized = errors.New("metadata: unauthorized")

	// ErrForbidden is retried exactly once after a token refresh
	// (spec.md §4.2: "on 403 attempt exactly one refresh then retry").
	ErrForbidden = errors.New("metadata: forbidden")

	// ErrConnection covers transport-level failures (DNS, dial, TLS) that
	// are surfaced to the user and end the process with a non-zero status
	// rather than retried indefinitely.
	ErrConnection = errors.New("metadata: connection failed")

	// ErrLockConflict means the lock/unlock call could not proceed because
	// someone else holds the lock and force was not set.
	ErrLockConflict = errors.New("metadata: lock held by another user")
)

// APIError wraps a non-2xx response body for diagnostics while still
// classifying to one of the sentinels above via errors.Is/errors.As.
type APIError struct {
	StatusCode int
	Body       string
	sentinel   error
}

func (e *APIError) Error() string {
	return e.sentinel.Error() + ": " + e.Body
}

func (e *APIError) Unwrap() error {
	return e.sentinel
}

func classifyStatus(statusCode int, body string) *APIError {
	var sentinel error

	switch {
	case statusCode == 401:
		sentinel = ErrUnauthorized
	case statusCode == 403:
		sentinel = ErrForbidden
	case statusCode == 409:
		sentinel = ErrLockConflict
	default:
		sentinel = ErrConnection
	}

	return &APIError{StatusCode: statusCode, Body: body, sentinel: sentinel}
}
