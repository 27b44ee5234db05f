package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/internal/report"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
)

type validateFlags struct {
	report  string
	options string
}

func newValidateCmd(newLogger func(*cobra.Command) (cdlog.Logger, error)) *cobra.Command {
	var f validateFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a report document or an options file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.report == "" && f.options == "" {
				return withExitCode(ExitUsageError, errors.New("at least one of --report or --options must be provided"))
			}
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			if f.options != "" {
				if _, err := config.LoadOptionsFromFile(f.options); err != nil {
					return withExitCode(ExitFailure, describe("options file", err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "options file %s is valid\n", f.options)
			}
			if f.report != "" {
				data, err := readInput(cmd, f.report)
				if err != nil {
					return withExitCode(ExitFailure, err)
				}
				if err := report.Validate(data); err != nil {
					return withExitCode(ExitFailure, describe("report", err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "report %s is valid\n", f.report)
			}
			log.Debugf("Validation finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&f.report, "report", "", "Report document to check ('-' for stdin)")
	cmd.Flags().StringVar(&f.options, "options", "", "Options file to check")
	return cmd
}

func describe(what string, err error) error {
	var validationErr *cderrors.ValidationError
	var configErr *cderrors.ConfigError
	switch {
	case errors.As(err, &validationErr):
		return fmt.Errorf("%s validation failed:\n%s", what, validationErr.Error())
	case errors.As(err, &configErr):
		return fmt.Errorf("%s configuration error:\n%s", what, configErr.Error())
	default:
		return fmt.Errorf("failed to validate %s: %w", what, err)
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == stdinPath {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read '%s': %w", path, err)
	}
	return data, nil
}
