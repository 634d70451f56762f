// Package logging wraps log/slog with neurite-specific helpers so every
// component emits the same field names.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/katalvlaran/neurite/search"
)

// Logger wraps slog.Logger with neurite-specific context.
type Logger struct {
	*slog.Logger
}

// New creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at Info.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewText creates a Logger that writes human-readable text to w.
func NewText(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSON creates a Logger that writes JSON records to w.
func NewJSON(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Noop creates a Logger that discards all output.
func Noop() *Logger {
	return New(slog.DiscardHandler)
}

// ParseLevel maps "debug", "info", "warn" or "error" to a slog.Level.
// Unknown names yield Info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}

	return l
}

// WithID adds a request id field.
func (l *Logger) WithID(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// WithComponent adds a component field.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogSubmit logs an accepted search request.
func (l *Logger) LogSubmit(ctx context.Context, id uint64, mode search.Mode, start, goal string, costKind string) {
	l.DebugContext(ctx, "search accepted",
		"id", id,
		"mode", mode.String(),
		"start", start,
		"goal", goal,
		"cost", costKind,
	)
}

// LogSearch logs a terminal search outcome. Exhaustion and cancellation
// are expected outcomes and log at Info; other failures at Warn.
func (l *Logger) LogSearch(ctx context.Context, id uint64, res search.Result, elapsed time.Duration) {
	attrs := []any{
		"id", id,
		"status", res.Status.String(),
		"opened", res.Stats.Opened,
		"closed", res.Stats.Closed,
		"expanded", res.Stats.Expanded,
		"elapsed", elapsed,
	}
	switch res.Status {
	case search.Succeeded:
		l.InfoContext(ctx, "search completed", append(attrs, "cost", res.Cost, "points", res.Path.Len())...)
	case search.Cancelled:
		l.InfoContext(ctx, "search cancelled", attrs...)
	default:
		if res.Err == nil || isExpected(res.Err) {
			l.InfoContext(ctx, "search found no path", append(attrs, "reason", errString(res.Err))...)
			return
		}
		l.WarnContext(ctx, "search failed", append(attrs, "error", res.Err)...)
	}
}

// LogFilter logs a finished ridge-filter computation.
func (l *Logger) LogFilter(ctx context.Context, role, kind string, sigmas []float64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "filter failed",
			"role", role,
			"kind", kind,
			"sigmas", sigmas,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "filter completed",
			"role", role,
			"kind", kind,
			"sigmas", sigmas,
			"elapsed", elapsed,
		)
	}
}

// LogFill logs a finished flood fill.
func (l *Logger) LogFill(ctx context.Context, seeds, voxels int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fill failed",
			"seeds", seeds,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fill completed",
			"seeds", seeds,
			"voxels", voxels,
			"elapsed", elapsed,
		)
	}
}

// LogRefused logs a refused image reload.
func (l *Logger) LogRefused(ctx context.Context, active int, filtering bool) {
	l.WarnContext(ctx, "image reload refused",
		"active_searches", active,
		"filter_in_flight", filtering,
	)
}

func isExpected(err error) bool {
	return errors.Is(err, search.ErrExhausted)
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
