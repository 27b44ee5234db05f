package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/tsupplis/ansible-callbacks/internal/logger"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("verbose"))
}

func TestLogger_JSONFormatAndLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("warn", logger.FormatJSON, &buf)

	log.Infof("hidden %d", 1)
	assert.Zero(t, buf.Len(), "INFO must be filtered at WARN level")

	log.Warnf("visible %s", "line")
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "visible line", rec["msg"])
}

func TestLogger_ErrorfAddsSinkAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("debug", logger.FormatJSON, &buf).With("component", "test")

	err := cderrors.NewSinkError("stdout", "write", errors.New("broken pipe"))
	log.Errorf("report lost: %v", err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "SinkError", rec["error_type"])
	assert.Equal(t, "stdout", rec["sink"])
	assert.Equal(t, "write", rec["stage"])
	assert.Equal(t, "broken pipe", rec["error"])
	assert.Equal(t, "test", rec["component"])
}

func TestOtelHandler_InjectsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", logger.FormatJSON, &buf)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.LogCtx(ctx, slog.LevelInfo, "with span")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, traceID.String(), rec["trace_id"])
	assert.Equal(t, spanID.String(), rec["span_id"])
}
