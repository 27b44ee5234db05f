package replay

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed job_event_schema_v1.json
var jobEventSchemaBytes []byte

var (
	jobEventSchema     *gojsonschema.Schema
	jobEventSchemaOnce sync.Once
	jobEventSchemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	jobEventSchemaOnce.Do(func() {
		jobEventSchema, jobEventSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jobEventSchemaBytes))
		if jobEventSchemaErr != nil {
			jobEventSchemaErr = cderrors.NewConfigError("failed to compile embedded schema 'job_event_schema_v1.json'", jobEventSchemaErr)
		}
	})
	return jobEventSchema, jobEventSchemaErr
}

// ValidateRecord checks one job event line against the embedded schema.
func ValidateRecord(line []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(line))
	if err != nil {
		return cderrors.NewValidationError("job event is not valid JSON", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return cderrors.NewValidationError("job event failed schema validation: "+strings.Join(msgs, "; "), nil)
}
