package validation

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// CompileSchema checks that a schema is a loadable JSON Schema document.
func CompileSchema(schema interface{}) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(loaderFor(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// ValidateDocument validates an arbitrary decoded JSON document against a
// JSON Schema, which may be a JSONSchema value, raw JSON bytes or a string.
func ValidateDocument(schema interface{}, document interface{}) (*ValidationResult, error) {
	compiled, err := CompileSchema(schema)
	if err != nil {
		return nil, err
	}
	return ValidateCompiled(compiled, document)
}

// ValidateCompiled validates against an already compiled schema.
func ValidateCompiled(compiled *gojsonschema.Schema, document interface{}) (*ValidationResult, error) {
	result, err := compiled.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		field := re.Field()
		if field == "(root)" {
			if missing, ok := re.Details()["property"].(string); ok {
				field = missing
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: re.Description(),
			Code:    schemaErrorCode(re.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

func loaderFor(schema interface{}) gojsonschema.JSONLoader {
	switch s := schema.(type) {
	case string:
		return gojsonschema.NewStringLoader(s)
	case []byte:
		return gojsonschema.NewBytesLoader(s)
	default:
		return gojsonschema.NewGoLoader(s)
	}
}

// schemaErrorCode maps gojsonschema error types onto the codes ValidateInput emits.
func schemaErrorCode(errType string) string {
	switch errType {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "additional_property_not_allowed":
		return "EXTRA_FIELD"
	case "invalid_type":
		return "INVALID_TYPE"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "string_lte":
		return "MAX_LENGTH_VIOLATION"
	case "pattern":
		return "PATTERN_MISMATCH"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "number_gte", "number_gt":
		return "MINIMUM_VIOLATION"
	case "number_lte", "number_lt":
		return "MAXIMUM_VIOLATION"
	case "array_min_items":
		return "MIN_ITEMS_VIOLATION"
	default:
		return "SCHEMA_VIOLATION"
	}
}
