package seqdb

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with seqdb-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPartition adds a partition index field to the logger.
func (l *Logger) WithPartition(i int) *Logger {
	return &Logger{
		Logger: l.Logger.With("partition", i),
	}
}

// LogChunk logs the ingestion result of one chunk.
func (l *Logger) LogChunk(chunk string, sequences uint32, seqFile string) {
	l.Debug("chunk ingested",
		"chunk", chunk,
		"sequences", sequences,
		"sequence_file", seqFile,
	)
}

// LogBuild logs a finished build.
func (l *Logger) LogBuild(partitions int, sequences uint64, elapsed time.Duration) {
	l.Info("build completed",
		"partitions", partitions,
		"sequences", sequences,
		"elapsed", elapsed,
	)
}

// LogQuery logs a finished query.
func (l *Logger) LogQuery(action string, parse, filter, act time.Duration) {
	l.Debug("query completed",
		"action", action,
		"parse", parse,
		"filter", filter,
		"action_time", act,
	)
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(op string, partitions int, err error) {
	if err != nil {
		l.Error("snapshot "+op+" failed",
			"partitions", partitions,
			"error", err,
		)
	} else {
		l.Info("snapshot "+op+" completed",
			"partitions", partitions,
		)
	}
}
