package report

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/tsupplis/ansible-callbacks/internal/logger"
	"github.com/tsupplis/ansible-callbacks/internal/metrics"
	"github.com/tsupplis/ansible-callbacks/internal/tracing"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
	cdtracing "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Emitter writes documents to a sink.
type Emitter struct {
	sink    Sink
	colors  Colorizer
	log     cdlog.Logger
	metrics *metrics.Collectors
	tracer  cdtracing.TracerProvider
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithColorizer paints lines; the default writes plain text.
func WithColorizer(c Colorizer) EmitterOption {
	return func(e *Emitter) { e.colors = c }
}

// WithEmitterLogger sets the diagnostics logger.
func WithEmitterLogger(log cdlog.Logger) EmitterOption {
	return func(e *Emitter) {
		if log != nil {
			e.log = log
		}
	}
}

// WithEmitterCollectors wires Prometheus collectors.
func WithEmitterCollectors(c *metrics.Collectors) EmitterOption {
	return func(e *Emitter) { e.metrics = c }
}

// WithEmitterTracer wraps each emission in a span.
func WithEmitterTracer(tp cdtracing.TracerProvider) EmitterOption {
	return func(e *Emitter) { e.tracer = tp }
}

// NewEmitter returns an Emitter bound to sink.
func NewEmitter(sink Sink, opts ...EmitterOption) *Emitter {
	e := &Emitter{sink: sink, log: logger.NewDiscardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewCollectors(nil, nil)
	}
	e.log = e.log.With("component", "Emitter", "sink", sink.Name)
	return e
}

// Emit renders doc and writes it to the sink in one scoped acquisition: the
// sink is opened, written, flushed and closed, and it is closed on every
// path once opened. Any sink failure is returned as a *SinkError.
func (e *Emitter) Emit(ctx context.Context, doc Document) (err error) {
	_, span := tracing.Tracer(e.tracer).Start(ctx, tracing.SpanEmitReport)
	span.SetAttributes(
		attribute.Int(string(tracing.AttrEventCount), len(doc.Events)),
		attribute.Int(string(tracing.AttrHostCount), doc.PlayRecap.Len()),
	)
	start := time.Now()
	defer func() {
		e.metrics.ReportWriteDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			e.metrics.ReportsWritten.WithLabelValues("sink_error").Inc()
			tracing.RecordError(span, err)
			e.log.Errorf("Failed to write report: %v", err)
		} else {
			e.metrics.ReportsWritten.WithLabelValues("ok").Inc()
			e.log.Debugf("Report written (%d events, %d hosts)", len(doc.Events), doc.PlayRecap.Len())
		}
		span.End()
	}()

	lines, err := doc.Lines()
	if err != nil {
		return cderrors.NewSinkError(e.sink.Name, "encode", err)
	}

	w, err := e.sink.Open()
	if err != nil {
		return cderrors.NewSinkError(e.sink.Name, "open", err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cderrors.NewSinkError(e.sink.Name, "close", cerr)
		}
	}()

	bw := bufio.NewWriter(w)
	if err := writeLines(bw, lines, e.colors); err != nil {
		return cderrors.NewSinkError(e.sink.Name, "write", err)
	}
	if err := bw.Flush(); err != nil {
		return cderrors.NewSinkError(e.sink.Name, "flush", err)
	}
	return nil
}

func writeLines(w io.Writer, lines []Line, colors Colorizer) error {
	for _, l := range lines {
		if _, err := io.WriteString(w, colors.Paint(l.Style, l.Text)+"\n"); err != nil {
			return err
		}
	}
	return nil
}
