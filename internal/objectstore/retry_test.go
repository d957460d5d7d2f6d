package objectstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLocalReadRetry_SucceedsAfterTransientPermissionError(t *testing.T) {
	attempts := 0

	err := WithLocalReadRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return os.ErrPermission
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithLocalReadRetry_NonPermissionErrorFailsImmediately(t *testing.T) {
	attempts := 0
	sentinel := errors.New("boom")

	err := WithLocalReadRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithLocalReadRetry_ExhaustsAfterSixAttempts(t *testing.T) {
	attempts := 0

	err := WithLocalReadRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return os.ErrPermission
	})

	require.Error(t, err)
	assert.Equal(t, permissionRetryAttempts, attempts)
}
