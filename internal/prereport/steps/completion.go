package steps

import (
	"math"

	"prereport-service/internal/models"
)

func leadDataFor(leadType models.LeadType, clientLeadData, trueBuddyLeadData models.LeadData) models.LeadData {
	if leadType == models.LeadTypeTrueBuddy {
		return trueBuddyLeadData
	}
	return clientLeadData
}

// IsStepComplete evaluates the step's completion rule against the lead data
// record of the given lead type. An absent record or an unknown step is
// never complete.
func IsStepComplete(step int, leadType models.LeadType, clientLeadData, trueBuddyLeadData models.LeadData) bool {
	def, err := Lookup(leadType, step)
	if err != nil {
		return false
	}
	return def.Complete(leadDataFor(leadType, clientLeadData, trueBuddyLeadData))
}

// CompletionPercentage is round(100 * completed / total), 0 for an unknown
// lead type.
func CompletionPercentage(leadType models.LeadType, clientLeadData, trueBuddyLeadData models.LeadData) int {
	total := TotalSteps(leadType)
	if total == 0 {
		return 0
	}
	return percent(countComplete(leadType, leadDataFor(leadType, clientLeadData, trueBuddyLeadData)), total)
}

func countComplete(leadType models.LeadType, data models.LeadData) int {
	done := 0
	for _, def := range All(leadType) {
		if def.Complete(data) {
			done++
		}
	}
	return done
}

func percent(done, total int) int {
	return int(math.Round(100 * float64(done) / float64(total)))
}

// Evaluate builds the per-step progress summary for a report.
func Evaluate(report *models.PreReport, clientLeadData, trueBuddyLeadData models.LeadData) *models.Progress {
	total := TotalSteps(report.LeadType)
	data := leadDataFor(report.LeadType, clientLeadData, trueBuddyLeadData)

	progress := &models.Progress{
		CurrentStep: report.CurrentStep,
		TotalSteps:  total,
		Steps:       make([]models.StepStatus, 0, total),
	}
	for _, def := range All(report.LeadType) {
		complete := def.Complete(data)
		if complete {
			progress.CompletedSteps++
		}
		progress.Steps = append(progress.Steps, models.StepStatus{
			Number:    def.Number,
			Title:     def.Title,
			Complete:  complete,
			Skippable: def.Skippable,
		})
	}
	if total > 0 {
		progress.CompletionPercentage = percent(progress.CompletedSteps, total)
	}
	return progress
}
