// Package logging builds the daemon's slog loggers and shared attribute
// helpers. Console output uses a compact single-line format; JSON output is
// meant for log shippers.
package logging
