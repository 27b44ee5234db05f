package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
	"go.opentelemetry.io/otel/trace"
)

// Supported output formats for diagnostics.
const (
	FormatText = "text"
	FormatJSON = "json"
)

const defaultLevel = slog.LevelInfo

// ParseLevel converts common log level strings (case-insensitive) to slog.Level
// values. Unknown strings map to INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// slogLogger implements cdlog.Logger on top of log/slog.
type slogLogger struct {
	*slog.Logger
}

var _ cdlog.Logger = (*slogLogger)(nil)

// NewLogger creates a Logger writing diagnostics at the given level and
// format ("text" or "json") to writer, which defaults to os.Stderr. The
// report sink must never be passed here: diagnostics and the report are
// kept on separate streams.
func NewLogger(levelStr string, formatStr string, writer io.Writer) cdlog.Logger {
	if writer == nil {
		writer = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(levelStr),
		ReplaceAttr: upperCaseLevel,
	}

	var base slog.Handler
	if strings.EqualFold(formatStr, FormatJSON) {
		base = slog.NewJSONHandler(writer, opts)
	} else {
		base = slog.NewTextHandler(writer, opts)
	}
	return &slogLogger{Logger: slog.New(NewOtelHandler(base))}
}

// NewDiscardLogger returns a Logger that drops everything. Used by tests and
// by embedders that do not want diagnostics.
func NewDiscardLogger() cdlog.Logger {
	return NewLogger("error", FormatText, io.Discard)
}

var levelNames = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: "ERROR",
}

// upperCaseLevel renders the level attribute as an uppercase string.
func upperCaseLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	name, ok := levelNames[level]
	if !ok {
		name = level.String()
	}
	a.Value = slog.StringValue(name)
	return a
}

func (l *slogLogger) logf(level slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	l.Logger.Log(ctx, level, fmt.Sprintf(format, args...))
}

// Debugf logs a formatted message at the DEBUG level.
func (l *slogLogger) Debugf(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args...)
}

// Infof logs a formatted message at the INFO level.
func (l *slogLogger) Infof(format string, args ...interface{}) {
	l.logf(slog.LevelInfo, format, args...)
}

// Warnf logs a formatted message at the WARN level.
func (l *slogLogger) Warnf(format string, args ...interface{}) {
	l.logf(slog.LevelWarn, format, args...)
}

// Errorf logs a formatted message at the ERROR level. When the last argument
// is a SinkError or ProtocolViolationError its fields are attached as
// structured attributes.
func (l *slogLogger) Errorf(format string, args ...interface{}) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, slog.LevelError) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	var attrs []any
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			attrs = errorAttrs(err)
		}
	}
	l.Logger.Log(ctx, slog.LevelError, msg, attrs...)
}

// errorAttrs extracts structured attributes from the known error types.
func errorAttrs(err error) []any {
	var sinkErr *cderrors.SinkError
	if errors.As(err, &sinkErr) {
		attrs := []any{
			slog.String("error_type", "SinkError"),
			slog.String("sink", sinkErr.Sink),
			slog.String("stage", sinkErr.Stage),
		}
		if sinkErr.Cause != nil {
			attrs = append(attrs, slog.String("error", sinkErr.Cause.Error()))
		}
		return attrs
	}
	var pvErr *cderrors.ProtocolViolationError
	if errors.As(err, &pvErr) {
		attrs := []any{
			slog.String("error_type", "ProtocolViolationError"),
			slog.String("operation", pvErr.Operation),
		}
		if pvErr.RunID != "" {
			attrs = append(attrs, slog.String("run_id", pvErr.RunID))
		}
		return attrs
	}
	return []any{slog.String("error", err.Error())}
}

// Log logs a message at the specified level with explicit key-value pairs.
func (l *slogLogger) Log(level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(context.Background(), level, msg, args...)
}

// LogCtx logs with ctx so the OtelHandler can attach trace and span IDs.
func (l *slogLogger) LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(ctx, level, msg, args...)
}

// With returns a new Logger carrying the added attributes.
func (l *slogLogger) With(args ...interface{}) cdlog.Logger {
	return &slogLogger{Logger: l.Logger.With(args...)}
}

// IsEnabled checks if logging is enabled for the specified level.
func (l *slogLogger) IsEnabled(level slog.Level) bool {
	return l.Logger.Enabled(context.Background(), level)
}

// --- OtelHandler ---

// OtelHandler is a slog.Handler middleware that injects OpenTelemetry
// trace_id and span_id attributes when the logging context carries a valid
// span context.
type OtelHandler struct {
	next slog.Handler
}

// NewOtelHandler wraps next.
func NewOtelHandler(next slog.Handler) *OtelHandler {
	return &OtelHandler{next: next}
}

// Enabled forwards the check to the wrapped handler.
func (h *OtelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds trace identifiers to record and forwards it.
func (h *OtelHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

// WithAttrs returns a new OtelHandler wrapping next.WithAttrs.
func (h *OtelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewOtelHandler(h.next.WithAttrs(attrs))
}

// WithGroup returns a new OtelHandler wrapping next.WithGroup.
func (h *OtelHandler) WithGroup(name string) slog.Handler {
	return NewOtelHandler(h.next.WithGroup(name))
}
