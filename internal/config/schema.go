package config

import (
	_ "embed" // Required for //go:embed directive
	"fmt"
	"sync"

	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed options_schema_v1.json
var optionsSchemaBytes []byte

var (
	optionsSchema     *gojsonschema.Schema
	optionsSchemaOnce sync.Once
	optionsSchemaErr  error
)

// loadSchema compiles the embedded options schema once.
func loadSchema() (*gojsonschema.Schema, error) {
	optionsSchemaOnce.Do(func() {
		if len(optionsSchemaBytes) == 0 {
			optionsSchemaErr = cderrors.NewConfigError("embedded schema 'options_schema_v1.json' is empty", nil)
			return
		}
		optionsSchema, optionsSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(optionsSchemaBytes))
		if optionsSchemaErr != nil {
			optionsSchemaErr = cderrors.NewConfigError("failed to compile embedded schema 'options_schema_v1.json'", optionsSchemaErr)
		}
	})
	return optionsSchema, optionsSchemaErr
}

// ValidateWithSchema validates an options YAML document against the embedded
// schema. The YAML is decoded generically first because gojsonschema works on
// JSON-like Go values.
func ValidateWithSchema(documentYAML []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := yaml.Unmarshal(documentYAML, &doc); err != nil {
		return cderrors.NewConfigError("failed to parse options YAML for schema validation", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return cderrors.NewConfigError("schema validation process failed", err)
	}
	if result.Valid() {
		return nil
	}

	errMsg := "options file failed JSON schema validation:"
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" || field == "" {
			field = desc.Context().String()
		}
		errMsg += fmt.Sprintf("\n  - Field '%s': %s", field, desc.Description())
	}
	return cderrors.NewValidationError(errMsg, nil)
}
