package varanno

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with varanno-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithProject adds a project field to the logger.
func (l *Logger) WithProject(project string) *Logger {
	return &Logger{
		Logger: l.Logger.With("project", project),
	}
}

// WithRun adds a run field to the logger.
func (l *Logger) WithRun(id RunID) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", string(id)),
	}
}

// LogAnnotate logs the outcome of an annotation run.
func (l *Logger) LogAnnotate(ctx context.Context, s RunSummary, err error) {
	if err != nil {
		l.ErrorContext(ctx, "annotate failed",
			"run", string(s.RunID),
			"batches", s.Batches,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "annotate completed",
			"run", string(s.RunID),
			"annotator", s.Annotator.String(),
			"scope", s.Scope.String(),
			"annotated", s.Annotated,
			"skipped", s.Skipped,
			"duration", s.Duration,
		)
	}
}

// LogSnapshot logs a snapshot save or delete.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"snapshot", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op+" completed",
			"snapshot", name,
		)
	}
}

// LogQuery logs a read over the current view or a snapshot.
func (l *Logger) LogQuery(ctx context.Context, selector string, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"selector", selector,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"selector", selector,
			"results", results,
		)
	}
}

// LogRecovery logs the result of opening a project.
func (l *Logger) LogRecovery(ctx context.Context, committedRuns int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "open completed",
			"committed_runs", committedRuns,
		)
	}
}
