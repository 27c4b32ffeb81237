// Package logging configures the process-wide slog logger. Diagnostics go to
// stderr so command output on stdout stays clean for piping.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Init installs the default logger. When logFile is non-empty, records are
// mirrored to that file as well. Returns a close function for the file.
func Init(debug bool, logFile string) (func() error, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}
