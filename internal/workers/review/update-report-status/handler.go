package updatereportstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prereport-service/internal/common/config"
	"prereport-service/internal/common/errors"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/common/metrics"
	"prereport-service/internal/common/observability"
	"prereport-service/internal/common/validation"
	"prereport-service/internal/models"
)

const TaskType = "update-report-status"

// StatusUpdater applies a review decision to a report.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, to models.ReportStatus, actor, comment string) (*models.StatusChange, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	updater    StatusUpdater
	errHandler *errors.JobErrorHandler
	obs        *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Updater       StatusUpdater
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Updater == nil {
		return nil, fmt.Errorf("%s: status updater is required", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:     workerConfig,
		logger:     log,
		updater:    opts.Updater,
		errHandler: errors.NewJobErrorHandler(log),
		obs:        opts.Observability,
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

// Handle completes the job with the status change or hands the error to the
// job error handler, which fails transient errors and throws the rest as
// BPMN errors.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := observability.Tracer().Start(ctx, TaskType,
		trace.WithAttributes(attribute.Int64("job.key", job.GetKey())))
	defer span.End()

	h.logger.Info("processing review decision", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.ParseInput(job.GetVariables())
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			if err = h.completeJob(ctx, client, job, output); err == nil {
				metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
				metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
				h.obs.RecordJobProcessed(ctx, TaskType, "completed")
				return nil
			}
			return err
		}
	}

	stdErr := errors.Normalize(err)
	span.SetStatus(codes.Error, string(stdErr.Code))
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errHandler.HandleJobError(ctx, client, job, stdErr)
	return nil
}

// ParseInput decodes and validates the job variables.
func (h *Handler) ParseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err))
	}

	result := validation.ValidateInput(raw, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationFailedError(
			strings.Join(result.GetErrorMessages(), "; "), result.Errors)
	}

	input := &Input{
		ReportID:   int64(raw["reportId"].(float64)),
		Status:     raw["status"].(string),
		ReviewerID: strings.TrimSpace(raw["reviewerId"].(string)),
	}
	if comment, ok := raw["comment"].(string); ok {
		input.Comment = strings.TrimSpace(comment)
	}
	return input, nil
}

// Execute applies the decision. It is exported for direct use in tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	change, err := h.updater.UpdateStatus(ctx, input.ReportID, models.ReportStatus(input.Status), input.ReviewerID, input.Comment)
	if err != nil {
		return nil, err
	}

	h.logger.Info("review decision applied", map[string]interface{}{
		"reportId": change.ReportID,
		"from":     change.PreviousStatus,
		"to":       change.ReportStatus,
		"reviewer": input.ReviewerID,
	})

	return &Output{
		ReportID:       change.ReportID,
		PreviousStatus: string(change.PreviousStatus),
		ReportStatus:   string(change.ReportStatus),
		UpdatedAt:      change.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return err
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"reportId": output.ReportID,
	})
	return nil
}
