package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func remarksSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"remarks":   {Type: "string", MinLength: intPtr(10)},
			"website":   {Type: "string", Pattern: strPtr(URLPattern)},
			"riskLevel": {Type: "string", Enum: []string{"LOW", "MEDIUM", "HIGH"}},
			"links":     {Type: "array", Items: &Property{Type: "string", Pattern: strPtr(URLPattern)}},
			"quantity":  {Type: "number", Minimum: func() *float64 { f := 0.0; return &f }()},
		},
		Required:             []string{"remarks"},
		AdditionalProperties: false,
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]interface{}
		wantValid bool
		wantCodes map[string]string
	}{
		{
			name:      "valid payload",
			input:     map[string]interface{}{"remarks": "long enough remark", "riskLevel": "HIGH"},
			wantValid: true,
		},
		{
			name:      "missing required",
			input:     map[string]interface{}{"riskLevel": "LOW"},
			wantCodes: map[string]string{"remarks": "REQUIRED_FIELD_MISSING"},
		},
		{
			name:      "whitespace required counts as empty",
			input:     map[string]interface{}{"remarks": "   "},
			wantCodes: map[string]string{"remarks": "REQUIRED_FIELD_EMPTY"},
		},
		{
			name:      "too short",
			input:     map[string]interface{}{"remarks": "short"},
			wantCodes: map[string]string{"remarks": "MIN_LENGTH_VIOLATION"},
		},
		{
			name:      "blank optional skips pattern",
			input:     map[string]interface{}{"remarks": "long enough remark", "website": ""},
			wantValid: true,
		},
		{
			name:      "null optional skips type check",
			input:     map[string]interface{}{"remarks": "long enough remark", "riskLevel": nil},
			wantValid: true,
		},
		{
			name:      "bad url",
			input:     map[string]interface{}{"remarks": "long enough remark", "website": "not a url"},
			wantCodes: map[string]string{"website": "PATTERN_MISMATCH"},
		},
		{
			name:      "bad enum",
			input:     map[string]interface{}{"remarks": "long enough remark", "riskLevel": "EXTREME"},
			wantCodes: map[string]string{"riskLevel": "INVALID_ENUM_VALUE"},
		},
		{
			name: "bad array item",
			input: map[string]interface{}{
				"remarks": "long enough remark",
				"links":   []interface{}{"https://shop.example.com/item", "ftp:/broken"},
			},
			wantCodes: map[string]string{"links[1]": "PATTERN_MISMATCH"},
		},
		{
			name:      "negative number",
			input:     map[string]interface{}{"remarks": "long enough remark", "quantity": -3},
			wantCodes: map[string]string{"quantity": "MINIMUM_VIOLATION"},
		},
		{
			name:      "wrong type",
			input:     map[string]interface{}{"remarks": 12345678901},
			wantCodes: map[string]string{"remarks": "INVALID_TYPE"},
		},
		{
			name:      "extra field",
			input:     map[string]interface{}{"remarks": "long enough remark", "unexpected": "x"},
			wantCodes: map[string]string{"unexpected": "EXTRA_FIELD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, remarksSchema())

			if tt.wantValid {
				assert.True(t, result.Valid, "unexpected errors: %v", result.GetErrorMessages())
				return
			}
			require.False(t, result.Valid)
			for field, code := range tt.wantCodes {
				errs := result.GetErrorsForField(field)
				require.NotEmpty(t, errs, "expected error on %s", field)
				assert.Equal(t, code, errs[0].Code)
			}
		})
	}
}

func TestValidateInput_ErrorsAreSorted(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"zeta":  1,
		"alpha": 2,
		"mid":   3,
	}, JSONSchema{Type: "object", Properties: map[string]Property{}})

	require.Len(t, result.Errors, 3)
	assert.Equal(t, "alpha", result.Errors[0].Field)
	assert.Equal(t, "mid", result.Errors[1].Field)
	assert.Equal(t, "zeta", result.Errors[2].Field)
}

func TestValidateInput_MinLengthCountsRunes(t *testing.T) {
	schema := JSONSchema{
		Type:       "object",
		Properties: map[string]Property{"remarks": {Type: "string", MinLength: intPtr(10)}},
	}
	// thirteen runes spread over many more bytes
	result := ValidateInput(map[string]interface{}{"remarks": "नमस्तेनमस्तेन"}, schema)
	assert.True(t, result.Valid)
}

func TestJSONSchemaMarshalsAdditionalPropertiesFalse(t *testing.T) {
	raw, err := json.Marshal(remarksSchema())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"additionalProperties":false`)
}

func TestValidateDocument(t *testing.T) {
	schema := remarksSchema()

	t.Run("accepts valid", func(t *testing.T) {
		res, err := ValidateDocument(schema, map[string]interface{}{"remarks": "long enough remark"})
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})

	t.Run("reports missing required by property name", func(t *testing.T) {
		res, err := ValidateDocument(schema, map[string]interface{}{"riskLevel": "LOW"})
		require.NoError(t, err)
		require.False(t, res.Valid)
		assert.True(t, res.HasErrors("remarks"))
		assert.Equal(t, "REQUIRED_FIELD_MISSING", res.GetErrorsForField("remarks")[0].Code)
	})

	t.Run("rejects extra property", func(t *testing.T) {
		res, err := ValidateDocument(schema, map[string]interface{}{"remarks": "long enough remark", "x": 1})
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("raw schema string", func(t *testing.T) {
		res, err := ValidateDocument(`{"type":"object","required":["id"]}`, map[string]interface{}{"id": 1})
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})

	t.Run("broken schema", func(t *testing.T) {
		_, err := ValidateDocument(`{"type": 12}`, map[string]interface{}{})
		assert.Error(t, err)
	})
}

func TestFormatHelpers(t *testing.T) {
	assert.True(t, ValidateEmail("analyst@truebuddy.in"))
	assert.False(t, ValidateEmail("analyst@"))
	assert.True(t, ValidatePhone("+91 98765 43210"))
	assert.False(t, ValidatePhone("12"))
	assert.True(t, ValidateURL("https://marketplace.example.com/listing/42"))
	assert.False(t, ValidateURL("marketplace.example.com"))
}

func BenchmarkValidateInput(b *testing.B) {
	schema := remarksSchema()
	input := map[string]interface{}{
		"remarks":   "long enough remark",
		"website":   "https://example.com",
		"riskLevel": "HIGH",
		"links":     []interface{}{"https://a.example.com", "https://b.example.com"},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ValidateInput(input, schema)
	}
}
