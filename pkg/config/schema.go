package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaID = "https://rulesync.dev/config.v1beta1.json"

// Validator validates configuration data against the embedded JSON schema.
// Uses [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a [Validator] from JSON schema data.
func NewValidator(schemaData []byte) (*Validator, error) {
	var schema any

	err := json.Unmarshal(schemaData, &schema)
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()

	err = compiler.AddResource(schemaID, schema)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	jss, err := compiler.Compile(schemaID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: jss}, nil
}

// MustNewValidator is [NewValidator] that panics on error. Intended for the
// embedded, generated schema.
func MustNewValidator(schemaData []byte) *Validator {
	v, err := NewValidator(schemaData)
	if err != nil {
		panic(err)
	}

	return v
}

// Validate checks data against the schema and reports the most specific
// failing location.
func (v *Validator) Validate(data any) error {
	err := v.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	location := deepestLocation(validationErr)
	if len(location) == 0 {
		return fmt.Errorf("schema validation: %w", validationErr)
	}

	return fmt.Errorf("schema validation at /%s: %w", strings.Join(location, "/"), validationErr)
}

// deepestLocation returns the longest instance location among the error and
// all of its causes.
func deepestLocation(err *jsonschema.ValidationError) []string {
	longest := err.InstanceLocation

	for _, cause := range err.Causes {
		candidate := deepestLocation(cause)
		if len(candidate) > len(longest) {
			longest = candidate
		}
	}

	return longest
}
