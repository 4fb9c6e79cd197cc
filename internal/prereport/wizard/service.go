// Package wizard owns the pre-report wizard state server-side: report
// initialization, step saves, pointer navigation, submission and the
// externally driven status transitions that follow it.
package wizard

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/common/observability"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/cache"
	"prereport-service/internal/prereport/search"
	"prereport-service/internal/prereport/steps"
	"prereport-service/internal/prereport/store"
)

// Store is the persistence the wizard needs. *store.PostgresStore implements it.
type Store interface {
	CreateReport(ctx context.Context, req models.InitRequest) (*models.PreReport, error)
	GetReport(ctx context.Context, id int64) (*models.PreReport, error)
	GetLeadData(ctx context.Context, id int64, lt models.LeadType) (models.LeadData, error)
	SaveStep(ctx context.Context, id int64, lt models.LeadType, patch models.LeadData, ptr store.Pointer) (models.LeadData, error)
	SetStep(ctx context.Context, id int64, step int) error
	UpdateStatus(ctx context.Context, id int64, from, to models.ReportStatus, submittedAt *time.Time) (time.Time, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	ListProducts(ctx context.Context, clientID int64) ([]models.Product, error)
}

type Auditor interface {
	Record(ctx context.Context, entry models.AuditEntry) error
}

type Notifier interface {
	NotifyReviewers(ctx context.Context, report *models.PreReport, progress *models.Progress) error
	PublishSubmitted(ctx context.Context, report *models.PreReport, progress *models.Progress) error
}

type Indexer interface {
	IndexReport(ctx context.Context, doc search.Document) error
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// ReviewStarter starts the review workflow. *camunda.Client implements it.
type ReviewStarter interface {
	StartProcess(ctx context.Context, bpmnProcessID string, variables map[string]interface{}) (int64, error)
}

type Config struct {
	SaveTimeout       time.Duration
	LockTTL           time.Duration
	SideEffectTimeout time.Duration
	ReviewProcessID   string
}

// Deps are the collaborators. Only Store and Locker are required; the rest
// are skipped when nil.
type Deps struct {
	Store         Store
	Locker        cache.Locker
	Cache         *cache.Cache
	Audit         Auditor
	Notifier      Notifier
	Index         Indexer
	Review        ReviewStarter
	Observability *observability.Observability
}

type Service struct {
	cfg    Config
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func NewService(cfg Config, deps Deps, log logger.Logger) *Service {
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 15 * time.Second
	}
	if cfg.LockTTL < cfg.SaveTimeout {
		cfg.LockTTL = 2 * cfg.SaveTimeout
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 20 * time.Second
	}
	if deps.Locker == nil {
		deps.Locker = cache.NewMemoryLocker()
	}
	return &Service{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "wizard"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Initialize creates a report at step 1 with an empty lead data record.
func (s *Service) Initialize(ctx context.Context, req models.InitRequest) (*models.PreReport, error) {
	if !req.LeadType.Valid() {
		return nil, errors.NewInvalidLeadTypeError(string(req.LeadType))
	}
	if req.ClientID <= 0 {
		return nil, errors.NewInvalidInputError("clientId must be a positive integer")
	}
	if len(req.ProductIDs) == 0 {
		return nil, errors.NewInvalidInputError("at least one product must be selected")
	}
	for _, id := range req.ProductIDs {
		if id <= 0 {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("invalid product id %d", id))
		}
	}

	report, err := s.deps.Store.CreateReport(ctx, req)
	if err != nil {
		switch {
		case stderrors.Is(err, store.ErrClientNotFound):
			return nil, errors.NewInvalidInputError(fmt.Sprintf("client %d does not exist", req.ClientID))
		case stderrors.Is(err, store.ErrInvalidProducts):
			return nil, errors.NewInvalidInputError(err.Error())
		case stderrors.Is(err, context.DeadlineExceeded):
			return nil, errors.NewTimeoutError("initialize", err)
		}
		return nil, errors.NewInitializationFailedError(err)
	}

	s.logger.Info("pre-report initialized", map[string]interface{}{
		"reportId": report.ID,
		"clientId": report.ClientID,
		"leadType": report.LeadType,
		"products": len(report.ProductIDs),
	})
	s.audit(ctx, "report_initialized", report.ID, req.CreatedBy, map[string]interface{}{
		"clientId":   report.ClientID,
		"productIds": report.ProductIDs,
		"leadType":   report.LeadType,
	})
	return report, nil
}

// GetDetail returns the report, the lead data for its lead type and the
// derived progress.
func (s *Service) GetDetail(ctx context.Context, id int64) (*models.ReportDetail, error) {
	return s.deps.Cache.DetailOrLoad(ctx, id, func(ctx context.Context) (*models.ReportDetail, error) {
		report, data, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return newDetail(report, data), nil
	})
}

// StepDetail returns one step's title, fields and saved values.
func (s *Service) StepDetail(ctx context.Context, id int64, step int) (*models.StepDetail, error) {
	detail, err := s.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	report := detail.PreReport

	def, err := s.lookup(report.LeadType, step)
	if err != nil {
		return nil, err
	}
	data := detail.LeadData()
	slice := def.Extract(data)

	return &models.StepDetail{
		ReportID:   report.ID,
		LeadType:   report.LeadType,
		StepNumber: def.Number,
		TotalSteps: steps.TotalSteps(report.LeadType),
		Title:      def.Title,
		Fields:     steps.Fields(report.LeadType, step),
		Skippable:  def.Skippable,
		Complete:   def.Complete(data),
		Data:       slice,
	}, nil
}

func (s *Service) ListClients(ctx context.Context) ([]models.Client, error) {
	clients, err := s.deps.Cache.Clients(ctx, s.deps.Store.ListClients)
	if err != nil {
		return nil, errors.NewLookupFailedError("clients", err)
	}
	return clients, nil
}

func (s *Service) ListProducts(ctx context.Context, clientID int64) ([]models.Product, error) {
	if clientID <= 0 {
		return nil, errors.NewInvalidInputError("clientId must be a positive integer")
	}
	products, err := s.deps.Cache.Products(ctx, clientID, func(ctx context.Context) ([]models.Product, error) {
		return s.deps.Store.ListProducts(ctx, clientID)
	})
	if err != nil {
		return nil, errors.NewLookupFailedError("products", err)
	}
	return products, nil
}

// Search queries the report index.
func (s *Service) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	if s.deps.Index == nil {
		return nil, errors.NewExternalServiceError("search", stderrors.New("report search is disabled"))
	}
	if q.LeadType != "" && !q.LeadType.Valid() {
		return nil, errors.NewInvalidLeadTypeError(string(q.LeadType))
	}
	if q.ReportStatus != "" && !q.ReportStatus.Valid() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown report status %q", q.ReportStatus))
	}
	res, err := s.deps.Index.Search(ctx, q)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewTimeoutError("search", err)
		}
		return nil, errors.NewExternalServiceError("search", err)
	}
	return res, nil
}

func (s *Service) load(ctx context.Context, id int64) (*models.PreReport, models.LeadData, error) {
	report, err := s.deps.Store.GetReport(ctx, id)
	if err != nil {
		return nil, nil, fetchError(id, err)
	}
	data, err := s.deps.Store.GetLeadData(ctx, id, report.LeadType)
	if err != nil {
		return nil, nil, fetchError(id, err)
	}
	return report, data, nil
}

func (s *Service) lookup(lt models.LeadType, step int) (*steps.Definition, error) {
	def, err := steps.Lookup(lt, step)
	if err != nil {
		if stderrors.Is(err, steps.ErrUnknownLeadType) {
			return nil, errors.NewInvalidLeadTypeError(string(lt))
		}
		return nil, errors.NewStepOutOfRangeError(string(lt), step, steps.TotalSteps(lt))
	}
	return def, nil
}

func (s *Service) audit(ctx context.Context, event string, reportID int64, actor string, details map[string]interface{}) {
	if s.deps.Audit == nil {
		return
	}
	err := s.deps.Audit.Record(ctx, models.AuditEntry{
		EventType:    event,
		ResourceType: "pre_report",
		ResourceID:   fmt.Sprint(reportID),
		Actor:        actor,
		Details:      details,
		CreatedAt:    s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to create audit log", map[string]interface{}{
			"event":    event,
			"reportId": reportID,
			"error":    err,
		})
	}
}

func newDetail(report *models.PreReport, data models.LeadData) *models.ReportDetail {
	detail := &models.ReportDetail{PreReport: report}
	if report.LeadType == models.LeadTypeTrueBuddy {
		detail.TrueBuddyLeadData = data
	} else {
		detail.ClientLeadData = data
	}
	detail.Progress = steps.Evaluate(report, detail.ClientLeadData, detail.TrueBuddyLeadData)
	return detail
}

func fetchError(id int64, err error) error {
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewReportNotFoundError(id)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewTimeoutError("report fetch", err)
	}
	return errors.NewReportFetchFailedError(id, err)
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}
