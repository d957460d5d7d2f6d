package objectstore

import (
	"context"
	"log/slog"
)

// NoopClient is a Client that performs no actual object-store I/O, substituted
// in when TEST=1 is set (spec.md §6) so the daemon can be exercised end to
// end without real AWS credentials. Grounded on
// original_source/syncprojects/sync/backends/noop.py's
// RandomNoOpSyncBackend, which logs what it "would have done" instead of
// moving bytes; unlike the Python original this reports a stable empty
// remote rather than a random verdict, so the reconciliation invariants in
// spec.md §8 (idempotent no-op reconciliation) still hold under it.
type NoopClient struct {
	Logger *slog.Logger
}

var _ Client = NoopClient{}

func (c NoopClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.Default()
}

func (c NoopClient) List(ctx context.Context, prefix string) ([]Object, error) {
	c.logger().Debug("objectstore(noop): list", slog.String("prefix", prefix))

	return nil, nil
}

func (c NoopClient) Upload(ctx context.Context, localPath, key string) error {
	c.logger().Info("objectstore(noop): upload", slog.String("local_path", localPath), slog.String("key", key))

	return nil
}

func (c NoopClient) Download(ctx context.Context, key, localPath string) error {
	c.logger().Info("objectstore(noop): download", slog.String("key", key), slog.String("local_path", localPath))

	return nil
}

func (c NoopClient) Copy(ctx context.Context, srcKey, dstKey string) error {
	c.logger().Info("objectstore(noop): copy", slog.String("src", srcKey), slog.String("dst", dstKey))

	return nil
}

func (c NoopClient) Delete(ctx context.Context, key string) error {
	c.logger().Info("objectstore(noop): delete", slog.String("key", key))

	return nil
}
