// Package steps holds the wizard's step catalog: titles, ordered fields,
// payload schemas and completion rules for each (lead type, step) pair.
package steps

import (
	"errors"
	"fmt"
	"sort"

	"prereport-service/internal/common/validation"
	"prereport-service/internal/models"
)

var (
	ErrUnknownLeadType = errors.New("UNKNOWN_LEAD_TYPE")
	ErrStepOutOfRange  = errors.New("STEP_OUT_OF_RANGE")
)

// CompletionRule decides whether a step is complete given the lead data
// record. It is only consulted when the record exists.
type CompletionRule struct {
	Name  string
	Check func(models.LeadData) bool
}

// Definition describes one wizard step.
type Definition struct {
	LeadType  models.LeadType
	Number    int
	Title     string
	Fields    []string
	Skippable bool
	Schema    validation.JSONSchema
	Rule      CompletionRule
}

// Validate checks a step payload against the step's schema.
func (d *Definition) Validate(payload map[string]interface{}) *validation.ValidationResult {
	return validation.ValidateInput(payload, d.Schema)
}

// Extract returns the step's slice of a lead data record.
func (d *Definition) Extract(data models.LeadData) models.LeadData {
	return data.Subset(d.Fields)
}

// Complete applies the completion rule. A nil record is never complete.
func (d *Definition) Complete(data models.LeadData) bool {
	if data == nil {
		return false
	}
	return d.Rule.Check(data)
}

type key struct {
	leadType models.LeadType
	step     int
}

var (
	definitions = map[key]*Definition{}
	totals      = map[models.LeadType]int{}
)

func init() {
	register(models.LeadTypeClient, clientLeadSteps())
	register(models.LeadTypeTrueBuddy, trueBuddyLeadSteps())
}

func register(leadType models.LeadType, defs []*Definition) {
	for i, def := range defs {
		if def.Number != i+1 {
			panic(fmt.Sprintf("steps: %s step %d registered at position %d", leadType, def.Number, i+1))
		}
		def.LeadType = leadType
		def.Schema.Title = def.Title
		definitions[key{leadType, def.Number}] = def
	}
	totals[leadType] = len(defs)
}

// TotalSteps returns the number of steps for a lead type, 0 if unknown.
func TotalSteps(leadType models.LeadType) int {
	return totals[leadType]
}

// Title returns the step label, or "" for an unknown lead type or a step out
// of range.
func Title(leadType models.LeadType, step int) string {
	if def, ok := definitions[key{leadType, step}]; ok {
		return def.Title
	}
	return ""
}

// Fields returns the ordered field names of a step, nil when out of range.
func Fields(leadType models.LeadType, step int) []string {
	def, ok := definitions[key{leadType, step}]
	if !ok {
		return nil
	}
	out := make([]string, len(def.Fields))
	copy(out, def.Fields)
	return out
}

// Lookup resolves the definition for a step.
func Lookup(leadType models.LeadType, step int) (*Definition, error) {
	if !leadType.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLeadType, leadType)
	}
	def, ok := definitions[key{leadType, step}]
	if !ok {
		return nil, fmt.Errorf("%w: %s step %d not in [1,%d]", ErrStepOutOfRange, leadType, step, totals[leadType])
	}
	return def, nil
}

// All returns every step of a lead type in order.
func All(leadType models.LeadType) []*Definition {
	total := totals[leadType]
	out := make([]*Definition, 0, total)
	for n := 1; n <= total; n++ {
		out = append(out, definitions[key{leadType, n}])
	}
	return out
}

// FieldOwner returns the step that owns a field, 0 when no step does.
func FieldOwner(leadType models.LeadType, field string) int {
	for _, def := range All(leadType) {
		for _, f := range def.Fields {
			if f == field {
				return def.Number
			}
		}
	}
	return 0
}

// AllFields lists every field of a lead type, sorted.
func AllFields(leadType models.LeadType) []string {
	var out []string
	for _, def := range All(leadType) {
		out = append(out, def.Fields...)
	}
	sort.Strings(out)
	return out
}
