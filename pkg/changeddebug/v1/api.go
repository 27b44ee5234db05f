// Package v1 is the public surface of the changed_debug callback: the
// Recorder contract hosts drive, and the options used to configure it.
package v1

import (
	"context"
	"io"

	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/metrics"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/tracing"
)

// RecorderV1 records one run and writes its report when the run ends.
// Calls must be sequential; a Recorder is not safe for concurrent use.
type RecorderV1 interface {
	// Admit records one task-result notification.
	Admit(n events.Notification)
	// HostUnreachable records that host became unreachable. The host appears
	// in the recap even if it produced no task result.
	HostUnreachable(host string)
	// RunEnd closes the run, resolves the recap and writes the report. A
	// failure to write is returned as a *errors.SinkError.
	RunEnd(ctx context.Context) error
	// Abort closes a run that did not complete and still writes a
	// best-effort report from whatever was recorded.
	Abort(ctx context.Context, cause error) error
	// RunID identifies the run in logs, spans and errors.
	RunID() string

	// Setter methods. They fail once the run has started recording.
	SetOutput(name string, w io.Writer) error
	SetOutputFile(path string) error
	SetColorMode(mode string) error
	SetRunID(id string) error
	SetMetricsRegistryProvider(provider metrics.RegistryProvider) error
	SetTracerProvider(provider tracing.TracerProvider) error
}

// RecorderOption configures a Recorder at creation.
type RecorderOption func(RecorderV1) error

// WithOutput writes the report to w. The recorder never closes w.
func WithOutput(name string, w io.Writer) RecorderOption {
	return func(r RecorderV1) error {
		if w == nil {
			return cderrors.NewConfigError("output writer cannot be nil", nil)
		}
		return r.SetOutput(name, w)
	}
}

// WithOutputFile writes the report to a file created at run end.
func WithOutputFile(path string) RecorderOption {
	return func(r RecorderV1) error {
		if path == "" {
			return cderrors.NewConfigError("output file path cannot be empty", nil)
		}
		return r.SetOutputFile(path)
	}
}

// WithColorMode selects "auto", "always" or "never" colouring.
func WithColorMode(mode string) RecorderOption {
	return func(r RecorderV1) error {
		return r.SetColorMode(mode)
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) RecorderOption {
	return func(r RecorderV1) error {
		if id == "" {
			return cderrors.NewConfigError("run id cannot be empty", nil)
		}
		return r.SetRunID(id)
	}
}

// WithMetricsRegistryProvider registers the recorder's collectors with provider.
func WithMetricsRegistryProvider(provider metrics.RegistryProvider) RecorderOption {
	return func(r RecorderV1) error {
		if provider == nil {
			return cderrors.NewConfigError("metrics registry provider cannot be nil", nil)
		}
		return r.SetMetricsRegistryProvider(provider)
	}
}

// WithTracerProvider traces the run and the report emission with provider.
func WithTracerProvider(provider tracing.TracerProvider) RecorderOption {
	return func(r RecorderV1) error {
		if provider == nil {
			return cderrors.NewConfigError("tracer provider cannot be nil", nil)
		}
		return r.SetTracerProvider(provider)
	}
}
