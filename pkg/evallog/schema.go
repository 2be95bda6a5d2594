package evallog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed sample-schema.json
var sampleSchemaJSON []byte

var loadSampleSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(sampleSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile sample schema: %w", err)
	}

	return schema, nil
})

// Violation is one schema rule a sample record breaks.
type Violation struct {
	Field       string
	Description string
}

// String renders the violation as "field: description".
func (v Violation) String() string {
	return v.Field + ": " + v.Description
}

// ValidationResult is the outcome of checking one record against the sample schema.
type ValidationResult struct {
	Violations []Violation
}

// Valid reports whether the record satisfied the schema.
func (r *ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// ValidateSample checks raw record bytes against the embedded sample schema.
// The returned error is non-nil only when the bytes are not JSON at all or the
// schema cannot be compiled; rule violations are reported in the result.
func ValidateSample(data []byte) (*ValidationResult, error) {
	schema, err := loadSampleSchema()
	if err != nil {
		return nil, err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSample, err)
	}

	violations := make([]Violation, 0, len(result.Errors()))

	for _, resultErr := range result.Errors() {
		violations = append(violations, Violation{
			Field:       resultErr.Field(),
			Description: resultErr.Description(),
		})
	}

	return &ValidationResult{Violations: violations}, nil
}
