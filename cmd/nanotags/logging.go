package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	mainLogger    *slog.Logger
	queriesLogger *slog.Logger

	logLevelMap = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

// initLogging sends the main log to a JSON file in the cache directory and
// compiled search expressions to a second file, echoed on stderr when
// logQueries is set
func initLogging(logLevel string, logQueries bool) error {
	level, ok := logLevelMap[strings.ToLower(logLevel)]
	if !ok {
		level = slog.LevelWarn
	}

	logDir := getXDGCacheDir()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "nanotags.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	mainLogger = slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}))
	slog.SetDefault(mainLogger)

	queriesLogPath := filepath.Join(logDir, "nanotags-queries.log")
	queriesLogFile, err := os.OpenFile(queriesLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open queries log file: %w", err)
	}

	// searches log their expressions at debug level
	var queriesHandler slog.Handler = slog.NewJSONHandler(queriesLogFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if logQueries {
		stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		queriesHandler = &multiHandler{
			handlers: []slog.Handler{queriesHandler, stderrHandler},
		}
	}
	queriesLogger = slog.New(queriesHandler).With("logger", "queries")

	mainLogger.Debug("logging initialized",
		"level", level.String(),
		"log_file", logPath,
		"queries_file", queriesLogPath,
		"log_queries_stderr", logQueries)
	return nil
}

// getXDGCacheDir returns the cache directory holding the log files
func getXDGCacheDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "nanotags")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "nanotags")
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(homeDir, "Library", "Caches", "nanotags")
	}
	return filepath.Join(homeDir, ".cache", "nanotags")
}

// multiHandler fans records out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
