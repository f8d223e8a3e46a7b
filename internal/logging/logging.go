package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Configure installs a process-wide slog default logger writing to stderr.
//
// Supported levels: debug, info, warn, error.
func Configure(level string) error {
	return ConfigureWithFile(level, "")
}

// ConfigureWithFile is Configure with an additional log file. Every record
// goes both to stderr and to the file, which is opened for append on first
// use. An empty path behaves like Configure; an unopenable one degrades to
// stderr-only logging with a warning rather than failing the command.
func ConfigureWithFile(level, path string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	var openErr error
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			openErr = err
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: parsed})
	slog.SetDefault(slog.New(h))
	if openErr != nil {
		slog.Warn("Log file not writable, logging to stderr only.", "path", path, "err", openErr)
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}
