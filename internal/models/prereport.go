// internal/models/prereport.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

type PreReport struct {
	ID           int64        `json:"id"`
	ClientID     int64        `json:"clientId"`
	ProductIDs   []int64      `json:"productIds"`
	LeadType     LeadType     `json:"leadType"`
	ReportStatus ReportStatus `json:"reportStatus"`
	CurrentStep  int          `json:"currentStep"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	SubmittedAt  *time.Time   `json:"submittedAt,omitempty"`
}

// InitRequest is the body accepted when a report is created.
type InitRequest struct {
	ClientID   int64    `json:"clientId"`
	ProductIDs []int64  `json:"productIds"`
	LeadType   LeadType `json:"leadType"`
	CreatedBy  string   `json:"createdBy,omitempty"`
}

// LeadData is the sparse union of every step field for one lead type.
// A nil LeadData means the record does not exist; an empty one exists but
// holds no fields yet.
type LeadData map[string]interface{}

// Has reports whether a field is present with a non-blank value.
func (d LeadData) Has(field string) bool {
	if d == nil {
		return false
	}
	v, ok := d[field]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) != ""
	case []interface{}:
		return len(val) > 0
	case []string:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	}
	return true
}

// HasAll reports whether every field is present and non-blank.
func (d LeadData) HasAll(fields ...string) bool {
	for _, f := range fields {
		if !d.Has(f) {
			return false
		}
	}
	return true
}

// Subset copies the named fields that exist in d.
func (d LeadData) Subset(fields []string) LeadData {
	out := make(LeadData, len(fields))
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Merge overlays patch onto a copy of d. Null values in patch remove the key.
func (d LeadData) Merge(patch LeadData) LeadData {
	out := make(LeadData, len(d)+len(patch))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Clone deep-copies through a JSON round trip so callers can't alias nested slices.
func (d LeadData) Clone() LeadData {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return d.Merge(nil)
	}
	out := LeadData{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return d.Merge(nil)
	}
	return out
}

// ReportDetail is the aggregate the wizard renders from. Only the lead data
// matching the report's lead type is populated.
type ReportDetail struct {
	PreReport         *PreReport `json:"preReport"`
	ClientLeadData    LeadData   `json:"clientLeadData"`
	TrueBuddyLeadData LeadData   `json:"trueBuddyLeadData"`
	Progress          *Progress  `json:"progress,omitempty"`
}

// LeadData returns the record that belongs to the report's lead type.
func (r *ReportDetail) LeadData() LeadData {
	if r.PreReport != nil && r.PreReport.LeadType == LeadTypeTrueBuddy {
		return r.TrueBuddyLeadData
	}
	return r.ClientLeadData
}

// StepStatus describes one step in a progress summary.
type StepStatus struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Complete  bool   `json:"complete"`
	Skippable bool   `json:"skippable"`
}

type Progress struct {
	CurrentStep          int          `json:"currentStep"`
	TotalSteps           int          `json:"totalSteps"`
	CompletedSteps       int          `json:"completedSteps"`
	CompletionPercentage int          `json:"completionPercentage"`
	Steps                []StepStatus `json:"steps"`
}

// StepDetail is a single step's title and field slice.
type StepDetail struct {
	ReportID   int64    `json:"reportId"`
	LeadType   LeadType `json:"leadType"`
	StepNumber int      `json:"stepNumber"`
	TotalSteps int      `json:"totalSteps"`
	Title      string   `json:"title"`
	Fields     []string `json:"fields"`
	Skippable  bool     `json:"skippable"`
	Complete   bool     `json:"complete"`
	Data       LeadData `json:"data"`
}

// WizardAction names a pointer transition.
type WizardAction string

const (
	WizardActionSave     WizardAction = "save"
	WizardActionNext     WizardAction = "next"
	WizardActionPrevious WizardAction = "previous"
	WizardActionSkip     WizardAction = "skip"
	WizardActionResume   WizardAction = "resume"
	WizardActionSubmit   WizardAction = "submit"
)

// Transition is returned by every wizard operation.
type Transition struct {
	ReportID     int64        `json:"reportId"`
	LeadType     LeadType     `json:"leadType"`
	Action       WizardAction `json:"action"`
	FromStep     int          `json:"fromStep"`
	CurrentStep  int          `json:"currentStep"`
	TotalSteps   int          `json:"totalSteps"`
	ReportStatus ReportStatus `json:"reportStatus"`
	Submitted    bool         `json:"submitted"`
	Progress     *Progress    `json:"progress,omitempty"`
}

// StatusChange is the outcome of an externally driven status update.
type StatusChange struct {
	ReportID       int64        `json:"reportId"`
	PreviousStatus ReportStatus `json:"previousStatus"`
	ReportStatus   ReportStatus `json:"reportStatus"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
