package validation

import (
	"fmt"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
)

// LoadSchema loads a JSON schema from a file
func LoadSchema(schemaPath string) (*gojsonschema.Schema, error) {
	// The reference loader needs an absolute file URL
	absPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema path: %w", err)
	}
	schemaLoader := gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(absPath))
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return schema, nil
}

// Validate validates a JSON document against a loaded schema
func Validate(documentJSON []byte, schema *gojsonschema.Schema) error {
	documentLoader := gojsonschema.NewBytesLoader(documentJSON)
	result, err := schema.Validate(documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// ValidateAgainstFile validates a JSON document against a schema file
func ValidateAgainstFile(documentJSON []byte, schemaPath string) error {
	schema, err := LoadSchema(schemaPath)
	if err != nil {
		return err
	}
	return Validate(documentJSON, schema)
}
