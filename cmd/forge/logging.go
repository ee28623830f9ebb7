package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// newLogger keeps stderr quiet unless something is wrong; -v turns on
// debug output with source locations.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openLogFile appends to path, creating its directory. The TUI owns the
// terminal, so interactive sessions log here instead of stderr.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
