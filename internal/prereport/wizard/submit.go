package wizard

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/common/metrics"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/search"
	"prereport-service/internal/prereport/steps"
	"prereport-service/internal/prereport/store"
)

// Submit finalises a report that sits on its last step. The status change is
// the only part that can fail the call; notifications, indexing and the
// review process start run afterwards and are logged on failure.
func (s *Service) Submit(ctx context.Context, id int64, actor string) (*models.Transition, error) {
	var sub *submission
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		report, err := s.editableReport(ctx, id)
		if err != nil {
			return err
		}
		sub, err = s.submitLocked(ctx, report)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.finishSubmit(ctx, sub, actor), nil
}

type submission struct {
	report *models.PreReport
	data   models.LeadData
	tr     *models.Transition
}

// submitLocked moves an editable report on its final step to SUBMITTED.
// The caller holds the report's save lock.
func (s *Service) submitLocked(ctx context.Context, report *models.PreReport) (*submission, error) {
	id := report.ID
	total := steps.TotalSteps(report.LeadType)
	if report.CurrentStep != total {
		return nil, errors.NewInvalidInputError(fmt.Sprintf(
			"report is on step %d of %d; only the final step can be submitted", report.CurrentStep, total))
	}

	data, err := s.deps.Store.GetLeadData(ctx, id, report.LeadType)
	if err != nil {
		return nil, fetchError(id, err)
	}

	submittedAt := s.now()
	updatedAt, err := s.deps.Store.UpdateStatus(ctx, id, report.ReportStatus, models.ReportStatusSubmitted, &submittedAt)
	if err != nil {
		if stderrors.Is(err, store.ErrStatusConflict) {
			return nil, errors.NewReportLockedError(id, "changed concurrently")
		}
		return nil, errors.NewDatabaseError("submit report", err)
	}
	report.ReportStatus = models.ReportStatusSubmitted
	report.SubmittedAt = &submittedAt
	report.UpdatedAt = updatedAt
	s.deps.Cache.InvalidateDetail(ctx, id)

	return &submission{
		report: report,
		data:   data,
		tr:     transition(report, models.WizardActionSubmit, report.CurrentStep, data),
	}, nil
}

// finishSubmit records a committed submission and runs its side effects.
// It must run after the save lock is released.
func (s *Service) finishSubmit(ctx context.Context, sub *submission, actor string) *models.Transition {
	report, tr := sub.report, sub.tr

	metrics.SubmissionsTotal.WithLabelValues(string(report.LeadType)).Inc()
	metrics.WizardTransitionsTotal.WithLabelValues(string(report.LeadType), string(models.WizardActionSubmit)).Inc()
	s.logger.Info("pre-report submitted", map[string]interface{}{
		"reportId":   report.ID,
		"leadType":   report.LeadType,
		"completion": tr.Progress.CompletionPercentage,
	})
	s.audit(ctx, "report_submitted", report.ID, actor, map[string]interface{}{
		"leadType":             report.LeadType,
		"completionPercentage": tr.Progress.CompletionPercentage,
	})

	s.afterSubmit(ctx, report, sub.data, tr.Progress, actor)
	return tr
}

// afterSubmit fans out the submission side effects and waits for them.
// They run on a context detached from the caller so a disconnecting client
// does not abort them.
func (s *Service) afterSubmit(ctx context.Context, report *models.PreReport, data models.LeadData, progress *models.Progress, actor string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SideEffectTimeout)
	defer cancel()

	var g errgroup.Group
	run := func(effect string, enabled bool, fn func() error) {
		if !enabled {
			return
		}
		g.Go(func() error {
			if err := fn(); err != nil {
				metrics.SideEffectFailuresTotal.WithLabelValues(effect).Inc()
				s.logger.Warn("submission side effect failed", map[string]interface{}{
					"effect":   effect,
					"reportId": report.ID,
					"error":    err,
				})
			}
			return nil
		})
	}

	run("email", s.deps.Notifier != nil, func() error {
		return s.deps.Notifier.NotifyReviewers(ctx, report, progress)
	})
	run("sns", s.deps.Notifier != nil, func() error {
		return s.deps.Notifier.PublishSubmitted(ctx, report, progress)
	})
	run("search", s.deps.Index != nil, func() error {
		return s.deps.Index.IndexReport(ctx, search.NewDocument(report, data, progress.CompletionPercentage))
	})
	run("review", s.deps.Review != nil && s.cfg.ReviewProcessID != "", func() error {
		key, err := s.deps.Review.StartProcess(ctx, s.cfg.ReviewProcessID, map[string]interface{}{
			"reportId":             report.ID,
			"clientId":             report.ClientID,
			"leadType":             string(report.LeadType),
			"completionPercentage": progress.CompletionPercentage,
			"submittedBy":          actorOrSystem(actor),
		})
		if err != nil {
			return err
		}
		s.logger.Info("review process started", map[string]interface{}{
			"reportId":           report.ID,
			"processInstanceKey": key,
		})
		return nil
	})

	_ = g.Wait()
}

// UpdateStatus applies an externally driven transition such as a reviewer
// decision. DRAFT and IN_PROGRESS can only be left through Submit.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to models.ReportStatus, actor, comment string) (*models.StatusChange, error) {
	if !to.Valid() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown report status %q", to))
	}

	var change *models.StatusChange
	var report *models.PreReport
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		var err error
		report, err = s.deps.Store.GetReport(ctx, id)
		if err != nil {
			return fetchError(id, err)
		}
		from := report.ReportStatus
		if !models.CanTransition(from, to) {
			return errors.NewInvalidStatusTransitionError(string(from), string(to))
		}

		updatedAt, err := s.deps.Store.UpdateStatus(ctx, id, from, to, nil)
		if err != nil {
			if stderrors.Is(err, store.ErrStatusConflict) {
				return errors.NewInvalidStatusTransitionError(string(from), string(to))
			}
			return errors.NewDatabaseError("update status", err)
		}
		report.ReportStatus = to
		report.UpdatedAt = updatedAt
		s.deps.Cache.InvalidateDetail(ctx, id)

		change = &models.StatusChange{
			ReportID:       id,
			PreviousStatus: from,
			ReportStatus:   to,
			UpdatedAt:      updatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("report status changed", map[string]interface{}{
		"reportId": id,
		"from":     change.PreviousStatus,
		"to":       change.ReportStatus,
		"actor":    actorOrSystem(actor),
	})
	details := map[string]interface{}{"from": change.PreviousStatus, "to": change.ReportStatus}
	if comment != "" {
		details["comment"] = comment
	}
	s.audit(ctx, "status_changed", id, actor, details)

	if s.deps.Index != nil {
		s.reindex(ctx, report)
	}
	return change, nil
}

func (s *Service) reindex(ctx context.Context, report *models.PreReport) {
	data, err := s.deps.Store.GetLeadData(ctx, report.ID, report.LeadType)
	if err == nil {
		completion := steps.CompletionPercentage(report.LeadType, leadFor(report, data, models.LeadTypeClient), leadFor(report, data, models.LeadTypeTrueBuddy))
		err = s.deps.Index.IndexReport(ctx, search.NewDocument(report, data, completion))
	}
	if err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("search").Inc()
		s.logger.Warn("failed to reindex report", map[string]interface{}{
			"reportId": report.ID,
			"error":    err,
		})
	}
}

func leadFor(report *models.PreReport, data models.LeadData, lt models.LeadType) models.LeadData {
	if report.LeadType == lt {
		return data
	}
	return nil
}
