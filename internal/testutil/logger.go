package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output.
// Use in tests to silence components that log through an injected logger.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
