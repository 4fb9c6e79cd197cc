package updatereportstatus

import "prereport-service/internal/common/validation"

// GetInputSchema allows additional properties since jobs carry every
// process variable, not just this task's input.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"reportId", "status", "reviewerId"},
		Properties: map[string]validation.Property{
			"reportId": {
				Type:        "integer",
				Description: "Pre-report identifier",
				Minimum:     floatPtr(1),
			},
			"status": {
				Type:        "string",
				Description: "Review decision",
				Enum:        []string{"UNDER_REVIEW", "APPROVED", "REJECTED", "IN_PROGRESS"},
			},
			"reviewerId": {
				Type:        "string",
				Description: "Reviewer identity recorded in the audit trail",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(254),
			},
			"comment": {
				Type:        "string",
				Description: "Optional reviewer note",
				MaxLength:   intPtr(2000),
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }
