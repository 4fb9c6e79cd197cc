// pkg/registry/schema.go
package registry

// StepCatalog is the exportable description of every wizard step sequence.
type StepCatalog struct {
	Version     string            `json:"version" yaml:"version"`
	LastUpdated string            `json:"lastUpdated" yaml:"lastUpdated"`
	LeadTypes   []LeadTypeCatalog `json:"leadTypes" yaml:"leadTypes"`
}

type LeadTypeCatalog struct {
	LeadType   string      `json:"leadType" yaml:"leadType"`
	TotalSteps int         `json:"totalSteps" yaml:"totalSteps"`
	Steps      []StepEntry `json:"steps" yaml:"steps"`
}

type StepEntry struct {
	Number         int                    `json:"number" yaml:"number"`
	Title          string                 `json:"title" yaml:"title"`
	Fields         []string               `json:"fields" yaml:"fields"`
	RequiredFields []string               `json:"requiredFields,omitempty" yaml:"requiredFields,omitempty"`
	Skippable      bool                   `json:"skippable" yaml:"skippable"`
	CompletionRule string                 `json:"completionRule" yaml:"completionRule"`
	Schema         map[string]interface{} `json:"schema" yaml:"schema"`
}

// Find returns the catalog for a lead type.
func (c *StepCatalog) Find(leadType string) (*LeadTypeCatalog, bool) {
	for i := range c.LeadTypes {
		if c.LeadTypes[i].LeadType == leadType {
			return &c.LeadTypes[i], true
		}
	}
	return nil, false
}
