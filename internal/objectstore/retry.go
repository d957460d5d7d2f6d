package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// permissionRetryAttempts and permissionRetryInterval implement spec.md
// §4.1's "PermissionError-class failures on local reads are retried with
// linear backoff up to six attempts" — this is distinct from the HTTP-level
// retry the metadata client performs, so it gets its own small policy here
// rather than being folded into the transport layer.
const (
	permissionRetryAttempts = 6
	permissionRetryInterval = 250 * time.Millisecond
)

// WithLocalReadRetry runs fn, retrying with linear backoff when the error is
// an os.ErrPermission-class failure (a file momentarily locked by the DAW or
// a backup tool). Any other error returns immediately. permissionRetryAttempts
// counts total attempts, so WithMaxRetries is given one less: go-retry's
// max-retries parameter is retries beyond the first try.
func WithLocalReadRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var waits time.Duration

	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		waits++

		return waits * permissionRetryInterval, false
	})

	backoff := retry.WithMaxRetries(permissionRetryAttempts-1, linear)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, os.ErrPermission) {
			return retry.RetryableError(err)
		}

		return err
	})
	if err != nil {
		return fmt.Errorf("objectstore: local read: %w", err)
	}

	return nil
}
