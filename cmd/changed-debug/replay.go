package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsupplis/ansible-callbacks/internal/callback"
	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/internal/metrics"
	"github.com/tsupplis/ansible-callbacks/internal/replay"
	"github.com/tsupplis/ansible-callbacks/internal/tracing"
	changeddebug "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
)

type replayFlags struct {
	events      string
	optionsFile string
	output      string
	color       string
	metricsFile string
	runID       string
}

func newReplayCmd(newLogger func(*cobra.Command) (cdlog.Logger, error)) *cobra.Command {
	var f replayFlags
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a job event stream and write the report",
		Long: `Reads ansible-runner job events, one JSON object per line, and writes the
changed_debug report. A stream that ends before playbook_on_stats is an
aborted run: a best-effort report is still written and the command exits 3.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			return runReplay(cmd, f, log)
		},
	}
	cmd.Flags().StringVar(&f.events, "events", stdinPath, "Job event stream to read ('-' for stdin)")
	cmd.Flags().StringVar(&f.optionsFile, "config", "", "Options file with a callback_changed_debug section")
	cmd.Flags().StringVar(&f.output, "output", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&f.color, "color", DefaultColorMode, "Colour report lines: auto, always or never")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Dump Prometheus metrics in text format to this file")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Use this run identifier instead of a generated one")
	return cmd
}

func runReplay(cmd *cobra.Command, f replayFlags, log cdlog.Logger) error {
	cfg, err := loadConfig(f.optionsFile, log)
	if err != nil {
		return withExitCode(ExitFailure, err)
	}

	input, closeInput, err := openEvents(cmd, f.events)
	if err != nil {
		return withExitCode(ExitFailure, err)
	}
	defer closeInput()

	ctx, received, stop := notifyContext(cmd.Context())
	defer stop()

	metricsProvider := metrics.NewPrometheusRegistryProvider()
	tracerProvider, err := tracing.NewProviderFromEnv(ctx, tracing.WithProviderLogger(log))
	if err != nil {
		log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		tracerProvider = tracing.NewNoOpProvider()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Error shutting down tracer provider: %v", err)
		}
	}()

	opts := []changeddebug.RecorderOption{
		changeddebug.WithColorMode(f.color),
		changeddebug.WithMetricsRegistryProvider(metricsProvider),
		changeddebug.WithTracerProvider(tracerProvider),
	}
	if f.output != "" {
		opts = append(opts, changeddebug.WithOutputFile(f.output))
	} else {
		opts = append(opts, changeddebug.WithOutput("stdout", cmd.OutOrStdout()))
	}
	if f.runID != "" {
		opts = append(opts, changeddebug.WithRunID(f.runID))
	}
	cb, err := callback.New(cfg, log, opts...)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	sum, runErr := replay.New(cb, log).Run(ctx, input)
	log.Infof("Replayed %d records (%d ignored, %d malformed) for run %s", sum.Records, sum.Ignored, sum.Malformed, cb.RunID())

	if f.metricsFile != "" {
		if err := metricsProvider.WriteTextfile(f.metricsFile); err != nil {
			log.Warnf("Failed to write metrics file '%s': %v", f.metricsFile, err)
		}
	}
	return classifyReplayError(runErr, received())
}

// notifyContext cancels the returned context on SIGINT or SIGTERM and
// remembers which signal arrived.
func notifyContext(parent context.Context) (context.Context, func() os.Signal, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var mu sync.Mutex
	var got os.Signal
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			mu.Lock()
			got = sig
			mu.Unlock()
			cancel()
		case <-done:
		}
	}()
	received := func() os.Signal {
		mu.Lock()
		defer mu.Unlock()
		return got
	}
	stop := func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
	return ctx, received, stop
}

func classifyReplayError(err error, sig os.Signal) error {
	switch {
	case err == nil:
		return nil
	case cderrors.IsSinkError(err):
		return withExitCode(ExitFailure, err)
	case errors.Is(err, context.Canceled):
		code := ExitSigInt
		if sig == syscall.SIGTERM {
			code = ExitSigTerm
		}
		return withExitCode(code, fmt.Errorf("replay interrupted, partial report written: %w", err))
	default:
		return withExitCode(ExitIncompleteRun, fmt.Errorf("run incomplete, partial report written: %w", err))
	}
}

func loadConfig(optionsFile string, log cdlog.Logger) (config.Config, error) {
	loaderOpts := []config.LoaderOption{config.WithLogger(log)}
	if optionsFile != "" {
		opts, err := config.LoadOptionsFromFile(optionsFile)
		if err != nil {
			return config.Config{}, err
		}
		loaderOpts = append(loaderOpts, config.WithOptions(opts))
	}
	cfg, err := config.NewLoader(loaderOpts...).Load()
	if err != nil {
		return config.Config{}, err
	}
	log.Debugf("%s=%t (source: %s)", config.OptionShowUnchangedOK, cfg.ShowUnchangedOK, cfg.ShowUnchangedOKSource)
	return cfg, nil
}

func openEvents(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == stdinPath {
		return cmd.InOrStdin(), func() {}, nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open job events '%s': %w", path, err)
	}
	return fh, func() { _ = fh.Close() }, nil
}
