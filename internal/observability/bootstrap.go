package observability

import "log/slog"

// Slog exposes the wrapped *slog.Logger for call sites across the module
// that were already written against the standard library's logger (the
// HTTP middleware chain, the MCP transports) rather than this package's
// context-correlated Logger. Its output still passes through the same
// redacting handler NewLogger built.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// NewDefaultLogger builds the process-default structured logger from
// config.LoggingConfig's level and format, with DefaultRedactPatterns
// applied, and installs it as slog's package default.
func NewDefaultLogger(level, format string) *Logger {
	logger := NewLogger(LogConfig{Level: level, Format: format})
	slog.SetDefault(logger.Slog())
	return logger
}
