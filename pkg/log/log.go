// Package log wires slog to the handlers used by the CLI: a colored text
// handler for terminals, plus plain logfmt and JSON handlers.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel/trace"

	charmlog "github.com/charmbracelet/log"
)

// Format selects the log output encoding.
type Format string

// Level is a log severity by name.
type Level string

const (
	FormatText   Format = "text"
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"

	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")

	// AllFormats lists the accepted --log-format values.
	AllFormats = []string{
		string(FormatText),
		string(FormatLogfmt),
		string(FormatJSON),
	}

	// AllLevels lists the accepted --log-level values.
	AllLevels = []string{
		string(LevelDebug),
		string(LevelInfo),
		string(LevelWarn),
		string(LevelError),
	}
)

// ParseLevel maps a level name to a [slog.Level].
func ParseLevel(s string) (slog.Level, error) {
	switch Level(strings.ToLower(s)) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// ParseFormat maps a format name to a [Format].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatLogfmt, FormatJSON:
		return f, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// NewHandler creates a [slog.Handler] writing to w.
func NewHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	case FormatLogfmt:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})

	case FormatText:
		logger := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(int32(level)), //nolint:gosec // G115: bounded slog levels.
			Formatter:       charmlog.TextFormatter,
			ReportTimestamp: true,
			TimeFormat:      time.StampMilli,
		})
		logger.SetColorProfile(termenv.ColorProfile())

		return logger
	}

	return nil
}

// NewHandlerStrings creates a [slog.Handler] from the raw flag values.
func NewHandlerStrings(w io.Writer, level, format string) (slog.Handler, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	fmtv, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return NewHandler(w, lvl, fmtv), nil
}

// WithContext returns the default logger, annotated with the trace ID when
// ctx carries an active span.
func WithContext(ctx context.Context) *slog.Logger {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID := span.SpanContext().TraceID().String()
		if len(traceID) > 8 {
			traceID = traceID[:8]
		}

		return slog.With(slog.String("trace_id", traceID))
	}

	return slog.Default()
}
