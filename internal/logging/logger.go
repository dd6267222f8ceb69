// Package logging configures log/slog for qrtrack and carries request
// context into log entries.
//
// Loggers obtained through FromContext include chi's request id, so every
// line written while serving a request can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	slogmulti "github.com/samber/slog-multi"
)

// Setup installs the default slog logger and returns a cleanup func that
// closes the log file, if any.
//
// Level values: "debug", "info", "warn", "error" (default: "info").
// Format values: "text", "json" (default: "text").
//
// When file is non-empty every entry is also written to it as JSON. A file
// that cannot be opened is reported and logging continues on stdout only.
func Setup(level, format, file string) func() error {
	lvl := parseLevel(level)
	console := newHandler(os.Stdout, format, lvl)

	if file == "" {
		slog.SetDefault(slog.New(console))
		return func() error { return nil }
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(console))
		slog.Error("failed to open log file, using stdout only", "file", file, "error", err)
		return func() error { return nil }
	}

	slog.SetDefault(NewFanout(console, f, lvl))
	return f.Close
}

// NewFanout returns a logger writing to console and, as JSON, to w.
func NewFanout(console slog.Handler, w io.Writer, level slog.Level) *slog.Logger {
	fileHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(console, fileHandler))
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger, with request_id attached when ctx
// carries one from chi's RequestID middleware.
//
//	logger := logging.FromContext(r.Context())
//	logger.Info("check-in recorded", "session_id", classID)
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields returns a request logger carrying extra fields for a
// multi-step operation such as a dataset build.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
