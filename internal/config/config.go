package config

// Names under which the visibility option is published.
const (
	// SectionName is the options file section owned by this callback.
	SectionName = "callback_changed_debug"
	// OptionShowUnchangedOK is the option key inside SectionName.
	OptionShowUnchangedOK = "show_unchanged_ok_tasks"
	// EnvSuiteShowOK is the callback-suite-specific environment override.
	EnvSuiteShowOK = "ANSIBLE_CHANGED_DEBUG_SHOW_OK"
	// EnvGenericShowOK is the generic environment override.
	EnvGenericShowOK = "CHANGED_DEBUG_SHOW_OK"
)

// Source names which input decided the effective option value.
type Source string

const (
	SourceDefault     Source = "default"
	SourceOptionsFile Source = "options_file"
	SourceSuiteEnv    Source = "env:" + EnvSuiteShowOK
	SourceGenericEnv  Source = "env:" + EnvGenericShowOK
)

// Config is the process-scoped callback configuration. It is resolved once
// at run start and passed by value afterwards.
type Config struct {
	// ShowUnchangedOK retains "ok" events in the report event log.
	ShowUnchangedOK bool
	// ShowUnchangedOKSource records where ShowUnchangedOK came from.
	ShowUnchangedOKSource Source
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{ShowUnchangedOK: false, ShowUnchangedOKSource: SourceDefault}
}

// OptionsFile is the YAML options document:
//
//	schemaVersion: "v1"
//	callback_changed_debug:
//	  show_unchanged_ok_tasks: true
type OptionsFile struct {
	SchemaVersion string           `yaml:"schemaVersion"`
	Callback      *CallbackSection `yaml:"callback_changed_debug,omitempty"`
	// FilePath is the source of the document, for error messages only.
	FilePath string `yaml:"-"`
}

// CallbackSection holds the callback's options. Values are kept loosely
// typed so that YAML booleans and ini-style strings ("yes", "on") are both
// accepted.
type CallbackSection struct {
	ShowUnchangedOKTasks interface{} `yaml:"show_unchanged_ok_tasks,omitempty"`
}

// envOverrides is populated from the process environment (or an injected
// map) by caarlos0/env.
type envOverrides struct {
	Suite   string `env:"ANSIBLE_CHANGED_DEBUG_SHOW_OK"`
	Generic string `env:"CHANGED_DEBUG_SHOW_OK"`
}
