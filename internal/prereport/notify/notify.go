// Package notify tells reviewers and downstream systems that a pre-report
// was submitted.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"prereport-service/internal/common/aws"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/steps"
)

const EventReportSubmitted = "prereport.submitted"

type EmailSender interface {
	Send(ctx context.Context, msg aws.Email) (string, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload interface{}) (string, error)
}

// SubmittedEvent is the SNS payload for a submission.
type SubmittedEvent struct {
	ReportID             int64               `json:"reportId"`
	ClientID             int64               `json:"clientId"`
	ProductIDs           []int64             `json:"productIds"`
	LeadType             models.LeadType     `json:"leadType"`
	ReportStatus         models.ReportStatus `json:"reportStatus"`
	CompletionPercentage int                 `json:"completionPercentage"`
	SubmittedAt          time.Time           `json:"submittedAt"`
}

var reviewerBody = template.Must(template.New("reviewer").Parse(
	`Pre-report #{{.Report.ID}} ({{.LeadLabel}}) was submitted for review.

Client: {{.Report.ClientID}}
Products: {{range $i, $p := .Report.ProductIDs}}{{if $i}}, {{end}}{{$p}}{{end}}
Completion: {{.Progress.CompletionPercentage}}% ({{.Progress.CompletedSteps}}/{{.Progress.TotalSteps}} steps)
{{- range .Incomplete}}
  - step {{.Number}} {{.Title}} is incomplete
{{- end}}
Submitted at: {{.SubmittedAt}}
`))

// Notifier sends the reviewer email and the submission event. Either channel
// may be nil when disabled.
type Notifier struct {
	email     EmailSender
	events    EventPublisher
	reviewers []string
	logger    logger.Logger
}

func New(email EmailSender, events EventPublisher, reviewers []string, log logger.Logger) *Notifier {
	return &Notifier{
		email:     email,
		events:    events,
		reviewers: reviewers,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

func (n *Notifier) EmailEnabled() bool {
	return n != nil && n.email != nil && len(n.reviewers) > 0
}

func (n *Notifier) EventsEnabled() bool {
	return n != nil && n.events != nil
}

// NotifyReviewers emails the configured reviewers.
func (n *Notifier) NotifyReviewers(ctx context.Context, report *models.PreReport, progress *models.Progress) error {
	if !n.EmailEnabled() {
		return nil
	}
	msg, err := RenderReviewerEmail(report, progress, n.reviewers)
	if err != nil {
		return err
	}
	id, err := n.email.Send(ctx, msg)
	if err != nil {
		return err
	}
	n.logger.Info("reviewer email sent", map[string]interface{}{
		"reportId":  report.ID,
		"messageId": id,
		"to":        len(n.reviewers),
	})
	return nil
}

// PublishSubmitted emits the submission event.
func (n *Notifier) PublishSubmitted(ctx context.Context, report *models.PreReport, progress *models.Progress) error {
	if !n.EventsEnabled() {
		return nil
	}
	id, err := n.events.PublishEvent(ctx, EventReportSubmitted, NewSubmittedEvent(report, progress))
	if err != nil {
		return err
	}
	n.logger.Info("submission event published", map[string]interface{}{
		"reportId":  report.ID,
		"messageId": id,
	})
	return nil
}

func NewSubmittedEvent(report *models.PreReport, progress *models.Progress) SubmittedEvent {
	ev := SubmittedEvent{
		ReportID:     report.ID,
		ClientID:     report.ClientID,
		ProductIDs:   report.ProductIDs,
		LeadType:     report.LeadType,
		ReportStatus: report.ReportStatus,
	}
	if progress != nil {
		ev.CompletionPercentage = progress.CompletionPercentage
	}
	if report.SubmittedAt != nil {
		ev.SubmittedAt = *report.SubmittedAt
	}
	return ev
}

// RenderReviewerEmail builds the plain-text reviewer message.
func RenderReviewerEmail(report *models.PreReport, progress *models.Progress, to []string) (aws.Email, error) {
	if progress == nil {
		progress = &models.Progress{TotalSteps: steps.TotalSteps(report.LeadType)}
	}

	var incomplete []models.StepStatus
	for _, s := range progress.Steps {
		if !s.Complete {
			incomplete = append(incomplete, s)
		}
	}

	submittedAt := "-"
	if report.SubmittedAt != nil {
		submittedAt = report.SubmittedAt.UTC().Format(time.RFC1123)
	}

	var buf bytes.Buffer
	err := reviewerBody.Execute(&buf, map[string]interface{}{
		"Report":      report,
		"Progress":    progress,
		"Incomplete":  incomplete,
		"LeadLabel":   leadLabel(report.LeadType),
		"SubmittedAt": submittedAt,
	})
	if err != nil {
		return aws.Email{}, fmt.Errorf("render reviewer email: %w", err)
	}

	return aws.Email{
		To:      to,
		Subject: fmt.Sprintf("Pre-report #%d submitted (%s)", report.ID, leadLabel(report.LeadType)),
		Text:    buf.String(),
	}, nil
}

func leadLabel(lt models.LeadType) string {
	switch lt {
	case models.LeadTypeClient:
		return "Client Lead"
	case models.LeadTypeTrueBuddy:
		return "TrueBuddy Lead"
	}
	return string(lt)
}
