package report

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed report_schema_v1.json
var reportSchemaBytes []byte

var (
	reportSchema     *gojsonschema.Schema
	reportSchemaOnce sync.Once
	reportSchemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	reportSchemaOnce.Do(func() {
		reportSchema, reportSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(reportSchemaBytes))
		if reportSchemaErr != nil {
			reportSchemaErr = cderrors.NewConfigError("failed to compile embedded schema 'report_schema_v1.json'", reportSchemaErr)
		}
	})
	return reportSchema, reportSchemaErr
}

// Validate checks a rendered report against the embedded report schema.
func Validate(documentJSON []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(documentJSON))
	if err != nil {
		return cderrors.NewValidationError("report is not valid JSON", err)
	}
	if result.Valid() {
		return nil
	}

	var b strings.Builder
	b.WriteString("report failed JSON schema validation:")
	for _, desc := range result.Errors() {
		fmt.Fprintf(&b, "\n  - Field '%s': %s", desc.Field(), desc.Description())
	}
	return cderrors.NewValidationError(b.String(), nil)
}
