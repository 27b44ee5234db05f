package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/internal/logger"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOptions(t *testing.T, doc string) *config.OptionsFile {
	t.Helper()
	opts, err := config.LoadOptions([]byte(doc), "test.yaml")
	require.NoError(t, err)
	return opts
}

func TestLoad_DefaultIsHidden(t *testing.T) {
	cfg, err := config.NewLoader(config.WithEnvironment(map[string]string{})).Load()
	require.NoError(t, err)
	assert.False(t, cfg.ShowUnchangedOK)
	assert.Equal(t, config.SourceDefault, cfg.ShowUnchangedOKSource)
}

func TestLoad_Precedence(t *testing.T) {
	optsTrue := `
schemaVersion: "v1.0.0"
callback_changed_debug:
  show_unchanged_ok_tasks: true
`
	testCases := []struct {
		name       string
		options    string
		env        map[string]string
		expectShow bool
		expectSrc  config.Source
	}{
		{
			name:       "generic env only",
			env:        map[string]string{config.EnvGenericShowOK: "yes"},
			expectShow: true,
			expectSrc:  config.SourceGenericEnv,
		},
		{
			name:       "suite env beats generic env",
			env:        map[string]string{config.EnvSuiteShowOK: "off", config.EnvGenericShowOK: "on"},
			expectShow: false,
			expectSrc:  config.SourceSuiteEnv,
		},
		{
			name:       "empty suite env falls through",
			env:        map[string]string{config.EnvSuiteShowOK: "  ", config.EnvGenericShowOK: "1"},
			expectShow: true,
			expectSrc:  config.SourceGenericEnv,
		},
		{
			name:       "options file beats both env overrides",
			options:    optsTrue,
			env:        map[string]string{config.EnvSuiteShowOK: "false", config.EnvGenericShowOK: "false"},
			expectShow: true,
			expectSrc:  config.SourceOptionsFile,
		},
		{
			name:       "unrecognised value resolves to false",
			env:        map[string]string{config.EnvSuiteShowOK: "maybe", config.EnvGenericShowOK: "true"},
			expectShow: false,
			expectSrc:  config.SourceSuiteEnv,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			loaderOpts := []config.LoaderOption{
				config.WithEnvironment(tc.env),
				config.WithLogger(logger.NewDiscardLogger()),
			}
			if tc.options != "" {
				loaderOpts = append(loaderOpts, config.WithOptions(mustOptions(t, tc.options)))
			}
			cfg, err := config.NewLoader(loaderOpts...).Load()
			require.NoError(t, err)
			assert.Equal(t, tc.expectShow, cfg.ShowUnchangedOK)
			assert.Equal(t, tc.expectSrc, cfg.ShowUnchangedOKSource)
		})
	}
}

func TestLoadOptions_StringBooleans(t *testing.T) {
	opts := mustOptions(t, `
schemaVersion: "1.2.0"
callback_changed_debug:
  show_unchanged_ok_tasks: "Y"
`)
	cfg, err := config.NewLoader(config.WithOptions(opts), config.WithEnvironment(map[string]string{})).Load()
	require.NoError(t, err)
	assert.True(t, cfg.ShowUnchangedOK)
}

func TestLoadOptions_SectionMayBeOmitted(t *testing.T) {
	opts := mustOptions(t, `schemaVersion: "v1"`)
	cfg, err := config.NewLoader(
		config.WithOptions(opts),
		config.WithEnvironment(map[string]string{config.EnvGenericShowOK: "true"}),
	).Load()
	require.NoError(t, err)
	assert.True(t, cfg.ShowUnchangedOK)
	assert.Equal(t, config.SourceGenericEnv, cfg.ShowUnchangedOKSource)
}

func TestLoadOptions_Rejections(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: "   "},
		{name: "missing schemaVersion", doc: "callback_changed_debug: {}"},
		{name: "unknown option", doc: "schemaVersion: v1\ncallback_changed_debug:\n  show_everything: true\n"},
		{name: "unknown section", doc: "schemaVersion: v1\ncallback_minimal: {}\n"},
		{name: "bad version", doc: "schemaVersion: banana\n"},
		{name: "incompatible major", doc: "schemaVersion: v2.0.0\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadOptions([]byte(tc.doc), "bad.yaml")
			require.Error(t, err)
			var cfgErr *cderrors.ConfigError
			var valErr *cderrors.ValidationError
			assert.True(t, errors.As(err, &cfgErr) || errors.As(err, &valErr), "unexpected error type: %T", err)
		})
	}
}

func TestLoadOptionsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "changed_debug.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schemaVersion: v1\ncallback_changed_debug:\n  show_unchanged_ok_tasks: 1\n"), 0o600))

	opts, err := config.LoadOptionsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, opts.FilePath)

	cfg, err := config.NewLoader(config.WithOptions(opts), config.WithEnvironment(map[string]string{})).Load()
	require.NoError(t, err)
	assert.True(t, cfg.ShowUnchangedOK)

	_, err = config.LoadOptionsFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"1", "TRUE", " yes ", "On", "y"} {
		v, ok := config.ParseBool(raw)
		assert.True(t, ok, raw)
		assert.True(t, v, raw)
	}
	for _, raw := range []string{"0", "False", "no", "OFF", "n"} {
		v, ok := config.ParseBool(raw)
		assert.True(t, ok, raw)
		assert.False(t, v, raw)
	}
	_, ok := config.ParseBool("2")
	assert.False(t, ok)
}
