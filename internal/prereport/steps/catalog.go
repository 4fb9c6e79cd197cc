package steps

import (
	"encoding/json"
	"time"

	"prereport-service/internal/models"
	"prereport-service/pkg/registry"
)

// CatalogVersion changes whenever a step's fields or rules change.
const CatalogVersion = "1.2.0"

// Catalog renders every step sequence as an exportable registry document.
func Catalog() *registry.StepCatalog {
	cat := &registry.StepCatalog{
		Version:     CatalogVersion,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}
	for _, lt := range models.LeadTypes() {
		cat.LeadTypes = append(cat.LeadTypes, LeadTypeCatalog(lt))
	}
	return cat
}

// LeadTypeCatalog renders one lead type's steps.
func LeadTypeCatalog(leadType models.LeadType) registry.LeadTypeCatalog {
	out := registry.LeadTypeCatalog{
		LeadType:   string(leadType),
		TotalSteps: TotalSteps(leadType),
	}
	for _, def := range All(leadType) {
		out.Steps = append(out.Steps, registry.StepEntry{
			Number:         def.Number,
			Title:          def.Title,
			Fields:         append([]string(nil), def.Fields...),
			RequiredFields: append([]string(nil), def.Schema.Required...),
			Skippable:      def.Skippable,
			CompletionRule: def.Rule.Name,
			Schema:         schemaMap(def),
		})
	}
	return out
}

func schemaMap(def *Definition) map[string]interface{} {
	raw, err := json.Marshal(def.Schema)
	if err != nil {
		return nil
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
