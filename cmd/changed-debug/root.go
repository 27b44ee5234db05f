package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsupplis/ansible-callbacks/internal/logger"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
)

const (
	ExitSuccess       = 0
	ExitFailure       = 1
	ExitUsageError    = 2
	ExitIncompleteRun = 3
	ExitSigIntBase    = 128
	ExitSigInt        = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm       = ExitSigIntBase + int(syscall.SIGTERM)
	DefaultLogLevel   = "warn"
	DefaultLogFmt     = logger.FormatText
	DefaultColorMode  = "auto"
	stdinPath         = "-"
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(s streams) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "changed-debug",
		Short: "Replay ansible-runner job events into a changed_debug report",
		Long: `changed-debug turns a recorded ansible-runner job event stream into the
changed_debug report: one JSON document holding the logged events and the
per-host play recap.

Examples:
	# Replay an artifact stream, report on stdout
	changed-debug replay --events artifacts/job_events.ndjson

	# Include unchanged ok tasks
	ANSIBLE_CHANGED_DEBUG_SHOW_OK=true changed-debug replay --events - < events.ndjson

	# Check a report against the schema
	changed-debug validate --report report.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s) %s", version, commit, buildDate),
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetIn(s.in)
	root.SetOut(s.out)
	root.SetErr(s.errOut)

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", DefaultLogFmt, "Log format (text, json)")

	newLogger := func(cmd *cobra.Command) (cdlog.Logger, error) {
		if g.logFormat != logger.FormatText && g.logFormat != logger.FormatJSON {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("--log-format must be '%s' or '%s'", logger.FormatText, logger.FormatJSON))
		}
		return logger.NewLogger(g.logLevel, g.logFormat, cmd.ErrOrStderr()).With("changed_debug_version", version), nil
	}

	root.AddCommand(
		newReplayCmd(newLogger),
		newValidateCmd(newLogger),
		newVersionCmd(),
	)
	return root
}

// run executes the CLI and maps the outcome onto an exit code.
func run(args []string) int {
	root := newRootCmd(streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr})
	root.SetArgs(args)
	return exitCode(root.Execute(), root.ErrOrStderr())
}

func exitCode(err error, errOut io.Writer) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}
