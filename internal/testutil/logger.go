// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"log/slog"

	"github.com/dtroode/identity-server/internal/logger"
)

// MakeNoopLogger returns a logger that discards every record, debug included,
// so that log argument construction is still exercised.
func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, int(slog.LevelDebug))
}
