package external

import (
	"context"
	"log/slog"
)

// SlogErrorReporter forwards a handler error to the structured logger at
// error level, the conservative stand-in for an external error-tracking
// service (spec.md §4.6/§7: "forward to the error-reporting capability").
// No Sentry-shaped client appears anywhere in the example pack, so this
// keeps the capability interface satisfied with the same sink every other
// package already logs through rather than inventing an unexercised
// third-party client.
type SlogErrorReporter struct {
	Logger *slog.Logger
}

var _ ErrorReporter = SlogErrorReporter{}

func (r SlogErrorReporter) Report(ctx context.Context, err error, taskID string) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Error("reported handler error", slog.String("task_id", taskID), slog.Any("error", err))
}
