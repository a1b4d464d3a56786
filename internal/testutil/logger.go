// Package testutil provides shared helpers for package tests: a
// scripted model backend, an SSE parser, and a quiet logger.
package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output.
// Use this in tests to reduce noise.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
