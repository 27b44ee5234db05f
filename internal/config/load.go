package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedSchemaVersionConstraint is the options file major version this
// build understands.
const SupportedSchemaVersionConstraint = "v1"

// LoadOptions parses and validates an options YAML document.
func LoadOptions(optionsYAML []byte, filePathHint string) (*OptionsFile, error) {
	if len(strings.TrimSpace(string(optionsYAML))) == 0 {
		return nil, cderrors.NewConfigError(fmt.Sprintf("options file '%s' is empty", filePathHint), nil)
	}

	if err := ValidateWithSchema(optionsYAML); err != nil {
		return nil, cderrors.NewConfigError(fmt.Sprintf("options file '%s' failed schema validation", filePathHint), err)
	}

	var opts OptionsFile
	if err := yamlUnmarshalStrict(optionsYAML, &opts); err != nil {
		return nil, cderrors.NewConfigError(fmt.Sprintf("failed to parse options file '%s'", filePathHint), err)
	}
	opts.FilePath = filePathHint

	version := opts.SchemaVersion
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return nil, cderrors.NewValidationError(fmt.Sprintf("options file '%s' has invalid 'schemaVersion' format: '%s'", filePathHint, opts.SchemaVersion), nil)
	}
	if semver.Major(version) != SupportedSchemaVersionConstraint {
		return nil, cderrors.NewValidationError(
			fmt.Sprintf("options file '%s' schemaVersion '%s' is not compatible with '%s'",
				filePathHint, opts.SchemaVersion, SupportedSchemaVersionConstraint),
			nil,
		)
	}
	return &opts, nil
}

// LoadOptionsFromFile reads and validates an options file from disk.
func LoadOptionsFromFile(filePath string) (*OptionsFile, error) {
	if filePath == "" {
		return nil, cderrors.NewConfigError("options file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, cderrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, cderrors.NewConfigError(fmt.Sprintf("failed to read options file '%s'", absPath), err)
	}
	return LoadOptions(data, absPath)
}

// Loader resolves a Config from its sources. The zero value reads the
// process environment and no options file.
type Loader struct {
	options     *OptionsFile
	environment map[string]string
	log         cdlog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOptions supplies an already-loaded options file.
func WithOptions(opts *OptionsFile) LoaderOption {
	return func(l *Loader) { l.options = opts }
}

// WithEnvironment replaces the process environment with m. Tests use it to
// keep resolution hermetic.
func WithEnvironment(m map[string]string) LoaderOption {
	return func(l *Loader) { l.environment = m }
}

// WithLogger routes warnings about unrecognised option values to log.
func WithLogger(log cdlog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader builds a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the effective configuration. Precedence, first non-empty
// wins: options file, suite-specific env, generic env, default.
func (l *Loader) Load() (Config, error) {
	var overrides envOverrides
	envOpts := env.Options{}
	if l.environment != nil {
		envOpts.Environment = l.environment
	}
	if err := env.ParseWithOptions(&overrides, envOpts); err != nil {
		return Config{}, cderrors.NewConfigError("failed to read environment overrides", err)
	}

	candidates := []struct {
		source Source
		raw    string
	}{
		{SourceOptionsFile, l.directOption()},
		{SourceSuiteEnv, overrides.Suite},
		{SourceGenericEnv, overrides.Generic},
	}

	cfg := Default()
	for _, c := range candidates {
		if strings.TrimSpace(c.raw) == "" {
			continue
		}
		value, ok := ParseBool(c.raw)
		if !ok {
			if l.log != nil {
				l.log.Warnf("Unrecognised boolean %q for %s from %s, using default %t", c.raw, OptionShowUnchangedOK, c.source, cfg.ShowUnchangedOK)
			}
			value = false
		}
		cfg.ShowUnchangedOK = value
		cfg.ShowUnchangedOKSource = c.source
		break
	}
	if l.log != nil {
		l.log.Debugf("Resolved %s=%t (source: %s)", OptionShowUnchangedOK, cfg.ShowUnchangedOK, cfg.ShowUnchangedOKSource)
	}
	return cfg, nil
}

// directOption returns the raw option value from the options file, or "".
func (l *Loader) directOption() string {
	if l.options == nil || l.options.Callback == nil || l.options.Callback.ShowUnchangedOKTasks == nil {
		return ""
	}
	switch v := l.options.Callback.ShowUnchangedOKTasks.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

var (
	trueValues  = map[string]struct{}{"1": {}, "true": {}, "yes": {}, "on": {}, "y": {}}
	falseValues = map[string]struct{}{"0": {}, "false": {}, "no": {}, "off": {}, "n": {}}
)

// ParseBool interprets ini/env style booleans case-insensitively. ok is false
// for anything outside the recognised vocabulary.
func ParseBool(raw string) (value bool, ok bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if _, found := trueValues[text]; found {
		return true, true
	}
	if _, found := falseValues[text]; found {
		return false, true
	}
	return false, false
}

// yamlUnmarshalStrict rejects unknown fields so typos in option names surface.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(strings.NewReader(string(in)))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
