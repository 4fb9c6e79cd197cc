package steps

import (
	"prereport-service/internal/common/validation"
	"prereport-service/internal/models"
)

type field struct {
	name     string
	prop     validation.Property
	required bool
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

func text(name, description string) field {
	return field{name: name, prop: validation.Property{Type: "string", Description: description, MaxLength: intPtr(2000)}}
}

func longText(name, description string, minLength int) field {
	p := validation.Property{Type: "string", Description: description, MaxLength: intPtr(5000)}
	if minLength > 0 {
		p.MinLength = intPtr(minLength)
	}
	return field{name: name, prop: p}
}

func phone(name, description string) field {
	return field{name: name, prop: validation.Property{Type: "string", Description: description, Pattern: strPtr(validation.PhonePattern)}}
}

func url(name, description string) field {
	return field{name: name, prop: validation.Property{Type: "string", Description: description, Pattern: strPtr(validation.URLPattern)}}
}

func date(name, description string) field {
	return field{name: name, prop: validation.Property{Type: "string", Description: description, Pattern: strPtr(validation.DatePattern)}}
}

func oneOf(name, description string, values []string) field {
	return field{name: name, prop: validation.Property{Type: "string", Description: description, Enum: values}}
}

func boolean(name, description string) field {
	return field{name: name, prop: validation.Property{Type: "boolean", Description: description}}
}

func count(name, description string) field {
	return field{name: name, prop: validation.Property{Type: "number", Description: description, Minimum: floatPtr(0)}}
}

func textList(name, description string) field {
	return field{name: name, prop: validation.Property{
		Type:        "array",
		Description: description,
		Items:       &validation.Property{Type: "string", MaxLength: intPtr(500)},
	}}
}

func phoneList(name, description string) field {
	return field{name: name, prop: validation.Property{
		Type:        "array",
		Description: description,
		Items:       &validation.Property{Type: "string", Pattern: strPtr(validation.PhonePattern)},
	}}
}

func emailList(name, description string) field {
	return field{name: name, prop: validation.Property{
		Type:        "array",
		Description: description,
		Items:       &validation.Property{Type: "string", Pattern: strPtr(validation.EmailPattern)},
	}}
}

func urlList(name, description string) field {
	return field{name: name, prop: validation.Property{
		Type:        "array",
		Description: description,
		Items:       &validation.Property{Type: "string", Pattern: strPtr(validation.URLPattern)},
	}}
}

func required(f field) field {
	f.required = true
	return f
}

// step assembles a Definition whose field order follows the arguments.
func step(number int, title string, skippable bool, rule CompletionRule, fields ...field) *Definition {
	def := &Definition{
		Number:    number,
		Title:     title,
		Skippable: skippable,
		Rule:      rule,
		Fields:    make([]string, 0, len(fields)),
		Schema: validation.JSONSchema{
			Type:                 "object",
			Properties:           make(map[string]validation.Property, len(fields)),
			AdditionalProperties: false,
		},
	}
	for _, f := range fields {
		def.Fields = append(def.Fields, f.name)
		def.Schema.Properties[f.name] = f.prop
		if f.required {
			def.Schema.Required = append(def.Schema.Required, f.name)
		}
	}
	return def
}

// Completion rules.

var whenPresent = CompletionRule{
	Name:  "present",
	Check: func(models.LeadData) bool { return true },
}

func allOf(fields ...string) CompletionRule {
	name := "all:"
	for i, f := range fields {
		if i > 0 {
			name += ","
		}
		name += f
	}
	return CompletionRule{
		Name:  name,
		Check: func(d models.LeadData) bool { return d.HasAll(fields...) },
	}
}
