// Package tracing provides the OpenTelemetry provider and the span helpers
// used around a run and its report emission.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
	cdtracing "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/tracing"
)

// TracerName identifies spans produced by this module.
const TracerName = "github.com/tsupplis/ansible-callbacks"

// Span and attribute names.
const (
	SpanRun        = "changed_debug.run"
	SpanEmitReport = "changed_debug.emit_report"

	AttrRunID           = attribute.Key("changed_debug.run_id")
	AttrPlaybook        = attribute.Key("changed_debug.playbook")
	AttrHost            = attribute.Key("changed_debug.host")
	AttrTask            = attribute.Key("changed_debug.task")
	AttrKind            = attribute.Key("changed_debug.kind")
	AttrEventCount      = attribute.Key("changed_debug.events")
	AttrHostCount       = attribute.Key("changed_debug.hosts")
	AttrAborted         = attribute.Key("changed_debug.aborted")
	AttrShowUnchangedOK = attribute.Key("changed_debug.show_unchanged_ok")
)

// Tracer returns the module tracer from tp, or a NoOp tracer when tp is nil.
func Tracer(tp cdtracing.TracerProvider) oteltrace.Tracer {
	if tp == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return tp.GetTracer(TracerName)
}

// StartRunSpan opens the span covering one run.
func StartRunSpan(ctx context.Context, tracer oteltrace.Tracer, runID, playbook string, showUnchangedOK bool) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, SpanRun, oteltrace.WithAttributes(
		AttrRunID.String(runID),
		AttrPlaybook.String(playbook),
		AttrShowUnchangedOK.Bool(showUnchangedOK),
	))
}

// AddEvent records a logged event on span as a span event.
func AddEvent(span oteltrace.Span, ev events.Event) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(string(ev.Kind), oteltrace.WithAttributes(
		AttrKind.String(string(ev.Kind)),
		AttrHost.String(ev.Host),
		AttrTask.String(ev.Task),
	))
}

// RecordError marks span as failed with err. It does nothing for a nil error
// or a span that is not recording.
func RecordError(span oteltrace.Span, err error) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
