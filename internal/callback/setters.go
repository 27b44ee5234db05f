package callback

import (
	"io"

	"github.com/tsupplis/ansible-callbacks/internal/report"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/metrics"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/tracing"
)

// checkIdle rejects setting changes once the run has started recording.
func (c *Callback) checkIdle(setting string) error {
	if c.agg != nil {
		return cderrors.NewConfigError("cannot change "+setting+" after the run started recording", nil)
	}
	return nil
}

// SetOutput writes the report to w under name. The callback never closes w.
func (c *Callback) SetOutput(name string, w io.Writer) error {
	if err := c.checkIdle("output"); err != nil {
		return err
	}
	if name == "" {
		name = "writer"
	}
	c.sink = report.WriterSink(name, w)
	c.sinkWriter = w
	return nil
}

// SetOutputFile writes the report to a file created at run end. Missing
// parent directories are created.
func (c *Callback) SetOutputFile(path string) error {
	if err := c.checkIdle("output"); err != nil {
		return err
	}
	c.sink = report.FileSink(path)
	c.sinkWriter = nil
	return nil
}

// SetColorMode selects "auto", "always" or "never" colouring of report lines.
func (c *Callback) SetColorMode(mode string) error {
	if err := c.checkIdle("color mode"); err != nil {
		return err
	}
	m, err := report.ParseColorMode(mode)
	if err != nil {
		return cderrors.NewConfigError("invalid color mode", err)
	}
	c.colorMode = m
	return nil
}

// SetRunID fixes the run identifier used in logs, spans and errors.
func (c *Callback) SetRunID(id string) error {
	if err := c.checkIdle("run id"); err != nil {
		return err
	}
	c.runID = id
	return nil
}

// SetMetricsRegistryProvider registers the run's collectors with provider's
// registry when recording starts.
func (c *Callback) SetMetricsRegistryProvider(provider metrics.RegistryProvider) error {
	if err := c.checkIdle("metrics provider"); err != nil {
		return err
	}
	c.metricsProvider = provider
	return nil
}

// SetTracerProvider traces the run and the report write with provider.
func (c *Callback) SetTracerProvider(provider tracing.TracerProvider) error {
	if err := c.checkIdle("tracer provider"); err != nil {
		return err
	}
	c.tracerProvider = provider
	return nil
}
