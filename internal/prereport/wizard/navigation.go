package wizard

import (
	"context"
	stderrors "errors"
	"sort"
	"strconv"
	"time"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/common/metrics"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/cache"
	"prereport-service/internal/prereport/steps"
	"prereport-service/internal/prereport/store"
)

// SaveStep validates and persists one step's payload without moving the
// pointer. This is the per-(lead type, step) update operation.
func (s *Service) SaveStep(ctx context.Context, id int64, step int, payload map[string]interface{}, actor string) (*models.Transition, error) {
	var tr *models.Transition
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		report, err := s.editableReport(ctx, id)
		if err != nil {
			return err
		}
		tr, err = s.save(ctx, report, step, payload, report.CurrentStep, actor)
		if err != nil {
			return err
		}
		tr.Action = models.WizardActionSave
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// Next saves the current step and advances the pointer. On the last step it
// saves and submits the report under the same lock instead of advancing.
func (s *Service) Next(ctx context.Context, id int64, payload map[string]interface{}, actor string) (*models.Transition, error) {
	var (
		tr  *models.Transition
		sub *submission
	)
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		report, err := s.editableReport(ctx, id)
		if err != nil {
			return err
		}
		total := steps.TotalSteps(report.LeadType)
		last := report.CurrentStep >= total

		next := report.CurrentStep + 1
		if next > total {
			next = total
		}
		tr, err = s.save(ctx, report, report.CurrentStep, payload, next, actor)
		if err != nil {
			return err
		}
		tr.Action = models.WizardActionNext
		if last {
			sub, err = s.submitLocked(ctx, report)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if sub != nil {
		return s.finishSubmit(ctx, sub, actor), nil
	}
	metrics.WizardTransitionsTotal.WithLabelValues(string(tr.LeadType), string(models.WizardActionNext)).Inc()
	return tr, nil
}

// Previous moves the pointer back one step without saving.
func (s *Service) Previous(ctx context.Context, id int64) (*models.Transition, error) {
	return s.move(ctx, id, models.WizardActionPrevious, func(report *models.PreReport, _ int) (int, error) {
		if report.CurrentStep <= 1 {
			return 1, nil
		}
		return report.CurrentStep - 1, nil
	})
}

// Skip advances past a skippable step without saving or validating it.
func (s *Service) Skip(ctx context.Context, id int64, actor string) (*models.Transition, error) {
	tr, err := s.move(ctx, id, models.WizardActionSkip, func(report *models.PreReport, total int) (int, error) {
		def, err := s.lookup(report.LeadType, report.CurrentStep)
		if err != nil {
			return 0, err
		}
		if !def.Skippable || report.CurrentStep >= total {
			return 0, errors.NewStepNotSkippableError(string(report.LeadType), report.CurrentStep)
		}
		return report.CurrentStep + 1, nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "step_skipped", id, actor, map[string]interface{}{"step": tr.FromStep})
	return tr, nil
}

// Resume places the pointer on an arbitrary step in range.
func (s *Service) Resume(ctx context.Context, id int64, step int) (*models.Transition, error) {
	return s.move(ctx, id, models.WizardActionResume, func(report *models.PreReport, total int) (int, error) {
		if step < 1 || step > total {
			return 0, errors.NewStepOutOfRangeError(string(report.LeadType), step, total)
		}
		return step, nil
	})
}

// move applies a pointer-only transition.
func (s *Service) move(ctx context.Context, id int64, action models.WizardAction, target func(*models.PreReport, int) (int, error)) (*models.Transition, error) {
	var tr *models.Transition
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		report, err := s.editableReport(ctx, id)
		if err != nil {
			return err
		}
		total := steps.TotalSteps(report.LeadType)
		to, err := target(report, total)
		if err != nil {
			return err
		}

		from := report.CurrentStep
		if to != from {
			if err := s.deps.Store.SetStep(ctx, id, to); err != nil {
				if stderrors.Is(err, store.ErrNotFound) {
					return errors.NewReportNotFoundError(id)
				}
				return errors.NewDatabaseError("set step", err)
			}
			s.deps.Cache.InvalidateDetail(ctx, id)
			report.CurrentStep = to
		}

		data, err := s.deps.Store.GetLeadData(ctx, id, report.LeadType)
		if err != nil {
			return fetchError(id, err)
		}
		tr = transition(report, action, from, data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WizardTransitionsTotal.WithLabelValues(string(tr.LeadType), string(action)).Inc()
	s.logger.Debug("wizard pointer moved", map[string]interface{}{
		"reportId": id,
		"action":   action,
		"from":     tr.FromStep,
		"to":       tr.CurrentStep,
	})
	return tr, nil
}

// save validates the payload against the step schema, then writes the step
// slice and the new pointer in one store call bounded by SaveTimeout. On any
// failure the stored pointer and data are unchanged.
func (s *Service) save(ctx context.Context, report *models.PreReport, step int, payload map[string]interface{}, nextStep int, actor string) (*models.Transition, error) {
	start := time.Now()
	lt := report.LeadType
	stepLabel := strconv.Itoa(step)

	def, err := s.lookup(lt, step)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}
	if result := def.Validate(payload); !result.Valid {
		metrics.StepSavesTotal.WithLabelValues(string(lt), stepLabel, "invalid").Inc()
		s.deps.Observability.RecordStepSave(ctx, string(lt), step, time.Since(start), "invalid")
		return nil, errors.NewValidationFailedError(
			"step "+stepLabel+" payload failed validation", result.Errors)
	}

	status := report.ReportStatus
	if status == models.ReportStatusDraft {
		status = models.ReportStatusInProgress
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.cfg.SaveTimeout)
	defer cancel()

	merged, err := s.deps.Store.SaveStep(saveCtx, report.ID, lt, def.Extract(payload),
		store.Pointer{CurrentStep: nextStep, Status: status})
	if err != nil {
		metrics.StepSavesTotal.WithLabelValues(string(lt), stepLabel, "failed").Inc()
		s.deps.Observability.RecordStepSave(ctx, string(lt), step, time.Since(start), "failed")
		s.logger.Error("step save failed", map[string]interface{}{
			"reportId": report.ID,
			"leadType": lt,
			"step":     step,
			"error":    err,
		})
		switch {
		case stderrors.Is(err, store.ErrNotFound):
			return nil, errors.NewReportNotFoundError(report.ID)
		case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(saveCtx.Err(), context.DeadlineExceeded):
			return nil, errors.NewTimeoutError("step save", err)
		}
		return nil, errors.NewStepSaveFailedError(report.ID, step, err)
	}

	elapsed := time.Since(start)
	metrics.StepSavesTotal.WithLabelValues(string(lt), stepLabel, "saved").Inc()
	metrics.StepSaveDuration.WithLabelValues(string(lt)).Observe(elapsed.Seconds())
	s.deps.Observability.RecordStepSave(ctx, string(lt), step, elapsed, "saved")
	s.deps.Cache.InvalidateDetail(ctx, report.ID)

	from := report.CurrentStep
	report.CurrentStep = nextStep
	report.ReportStatus = status
	report.UpdatedAt = s.now()

	s.logger.Info("step saved", map[string]interface{}{
		"reportId":   report.ID,
		"leadType":   lt,
		"step":       step,
		"fields":     len(payload),
		"durationMs": elapsed.Milliseconds(),
	})
	s.audit(ctx, "step_saved", report.ID, actor, map[string]interface{}{
		"step":   step,
		"fields": fieldNames(payload),
	})

	return transition(report, models.WizardActionSave, from, merged), nil
}

// withLock serialises mutations of one report across processes.
func (s *Service) withLock(ctx context.Context, id int64, fn func(context.Context) error) error {
	release, err := s.deps.Locker.Acquire(ctx, id, s.cfg.LockTTL)
	if err != nil {
		if stderrors.Is(err, cache.ErrLockHeld) {
			return errors.NewSaveInProgressError(id)
		}
		return errors.NewExternalServiceError("save lock", err)
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := release(relCtx); err != nil {
			s.logger.Warn("failed to release save lock", map[string]interface{}{
				"reportId": id,
				"error":    err,
			})
		}
	}()
	return fn(ctx)
}

func (s *Service) editableReport(ctx context.Context, id int64) (*models.PreReport, error) {
	report, err := s.deps.Store.GetReport(ctx, id)
	if err != nil {
		return nil, fetchError(id, err)
	}
	if !report.ReportStatus.Editable() {
		return nil, errors.NewReportLockedError(id, string(report.ReportStatus))
	}
	return report, nil
}

func transition(report *models.PreReport, action models.WizardAction, from int, data models.LeadData) *models.Transition {
	detail := newDetail(report, data)
	return &models.Transition{
		ReportID:     report.ID,
		LeadType:     report.LeadType,
		Action:       action,
		FromStep:     from,
		CurrentStep:  report.CurrentStep,
		TotalSteps:   steps.TotalSteps(report.LeadType),
		ReportStatus: report.ReportStatus,
		Submitted:    report.ReportStatus == models.ReportStatusSubmitted,
		Progress:     detail.Progress,
	}
}

func fieldNames(payload map[string]interface{}) []string {
	names := make([]string, 0, len(payload))
	for k := range payload {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
