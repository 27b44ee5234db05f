package errors

import (
	"errors"
	"fmt"
)

// --- Changed-Debug Error Types ---

// ConfigError represents an error encountered while loading or resolving
// the callback options (options file, environment overrides).
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some structured input (options file,
// replay record, report document) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// ProtocolViolationError is an internal invariant breach: an operation was
// invoked in a run state that does not permit it (e.g. admitting an event
// after the run ended, resolving a recap twice).
type ProtocolViolationError struct {
	Operation string // e.g., "admit", "resolve"
	RunID     string
	Reason    string
}

func NewProtocolViolationError(operation, runID, reason string) *ProtocolViolationError {
	return &ProtocolViolationError{Operation: operation, RunID: runID, Reason: reason}
}
func (e *ProtocolViolationError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("protocol violation (%s): %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("protocol violation (%s) in run %s: %s", e.Operation, e.RunID, e.Reason)
}

// IsProtocolViolation checks if an error is a ProtocolViolationError using errors.As.
func IsProtocolViolation(err error) bool {
	var pv *ProtocolViolationError
	return errors.As(err, &pv)
}

// SinkError means the final report could not be written to its sink. Losing
// the report is the one unrecoverable failure of a run.
type SinkError struct {
	Sink  string // Human readable sink name, e.g. "stdout" or a file path.
	Stage string // "encode", "open", "write", "flush" or "close".
	Cause error
}

func NewSinkError(sink, stage string, cause error) *SinkError {
	return &SinkError{Sink: sink, Stage: stage, Cause: cause}
}
func (e *SinkError) Error() string {
	return fmt.Sprintf("report sink %q failed during %s: %v", e.Sink, e.Stage, e.Cause)
}
func (e *SinkError) Unwrap() error { return e.Cause }

// IsSinkError checks if an error is a SinkError using errors.As.
func IsSinkError(err error) bool {
	var se *SinkError
	return errors.As(err, &se)
}
