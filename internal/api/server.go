// Package api exposes the pre-report wizard, the employee directory and the
// login history over REST.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prereport-service/internal/common/config"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/search"
)

const (
	basePath     = "/api/v1"
	maxBodyBytes = 1 << 20

	HeaderRequestID = "X-Request-ID"
	HeaderActor     = "X-Actor"
)

// Wizard is the subset of the wizard service the handlers drive.
type Wizard interface {
	Initialize(ctx context.Context, req models.InitRequest) (*models.PreReport, error)
	GetDetail(ctx context.Context, id int64) (*models.ReportDetail, error)
	StepDetail(ctx context.Context, id int64, step int) (*models.StepDetail, error)
	SaveStep(ctx context.Context, id int64, step int, payload map[string]interface{}, actor string) (*models.Transition, error)
	Next(ctx context.Context, id int64, payload map[string]interface{}, actor string) (*models.Transition, error)
	Previous(ctx context.Context, id int64) (*models.Transition, error)
	Skip(ctx context.Context, id int64, actor string) (*models.Transition, error)
	Resume(ctx context.Context, id int64, step int) (*models.Transition, error)
	Submit(ctx context.Context, id int64, actor string) (*models.Transition, error)
	Search(ctx context.Context, q search.Query) (*search.Result, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	ListProducts(ctx context.Context, clientID int64) ([]models.Product, error)
}

type Employees interface {
	List(ctx context.Context, activeOnly bool) ([]models.Employee, error)
	Get(ctx context.Context, id string) (*models.Employee, error)
	Create(ctx context.Context, in models.EmployeeInput) (*models.Employee, error)
	Update(ctx context.Context, id string, in models.EmployeeInput) (*models.Employee, error)
	Deactivate(ctx context.Context, id string) error
}

type LoginHistory interface {
	RecordLogin(ctx context.Context, event models.LoginEvent) (*models.LoginEvent, error)
	LoginHistory(ctx context.Context, filter models.LoginHistoryFilter) ([]models.LoginEvent, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Deps struct {
	Wizard    Wizard
	Employees Employees
	Logins    LoginHistory
	Checks    []Check
}

type Server struct {
	deps       Deps
	logger     logger.Logger
	handler    http.Handler
	httpServer *http.Server
	shutdown   time.Duration
}

func NewServer(cfg config.ServerConfig, deps Deps, log logger.Logger) *Server {
	s := &Server{
		deps:     deps,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
		shutdown: config.GetDuration(cfg.ShutdownTimeout),
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = s.recoverer(s.requestID(s.accessLog(mux)))

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.handler,
		ReadTimeout:       config.GetDuration(cfg.ReadTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+basePath+"/pre-reports", s.handleInitialize)
	mux.HandleFunc("GET "+basePath+"/pre-reports/search", s.handleSearch)
	mux.HandleFunc("GET "+basePath+"/pre-reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET "+basePath+"/pre-reports/{id}/steps/{step}", s.handleStepDetail)
	mux.HandleFunc("PUT "+basePath+"/pre-reports/{id}/steps/{step}", s.handleSaveStep)
	mux.HandleFunc("POST "+basePath+"/pre-reports/{id}/wizard/next", s.handleNext)
	mux.HandleFunc("POST "+basePath+"/pre-reports/{id}/wizard/previous", s.handlePrevious)
	mux.HandleFunc("POST "+basePath+"/pre-reports/{id}/wizard/skip", s.handleSkip)
	mux.HandleFunc("POST "+basePath+"/pre-reports/{id}/wizard/resume", s.handleResume)
	mux.HandleFunc("POST "+basePath+"/pre-reports/{id}/submit", s.handleSubmit)

	mux.HandleFunc("GET "+basePath+"/steps", s.handleCatalog)
	mux.HandleFunc("GET "+basePath+"/steps/{leadType}", s.handleLeadTypeCatalog)

	mux.HandleFunc("GET "+basePath+"/lookups/clients", s.handleClients)
	mux.HandleFunc("GET "+basePath+"/lookups/clients/{clientId}/products", s.handleProducts)

	mux.HandleFunc("GET "+basePath+"/employees", s.handleListEmployees)
	mux.HandleFunc("POST "+basePath+"/employees", s.handleCreateEmployee)
	mux.HandleFunc("GET "+basePath+"/employees/{id}", s.handleGetEmployee)
	mux.HandleFunc("PUT "+basePath+"/employees/{id}", s.handleUpdateEmployee)
	mux.HandleFunc("DELETE "+basePath+"/employees/{id}", s.handleDeactivateEmployee)

	mux.HandleFunc("GET "+basePath+"/login-history", s.handleLoginHistory)
	mux.HandleFunc("POST "+basePath+"/login-history", s.handleRecordLogin)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true
	for _, c := range s.deps.Checks {
		if err := c.Fn(ctx); err != nil {
			ready = false
			checks[c.Name] = err.Error()
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": c.Name, "error": err})
			continue
		}
		checks[c.Name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}
