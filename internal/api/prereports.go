package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/common/validation"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/search"
	"prereport-service/internal/prereport/steps"
)

// initSchema is the JSON Schema for POST /pre-reports.
const initSchema = `{
  "type": "object",
  "properties": {
    "clientId":   {"type": "integer", "minimum": 1},
    "productIds": {"type": "array", "minItems": 1, "items": {"type": "integer", "minimum": 1}},
    "leadType":   {"type": "string", "enum": ["CLIENT_LEAD", "TRUEBUDDY_LEAD"]},
    "createdBy":  {"type": "string", "maxLength": 254}
  },
  "required": ["clientId", "productIds", "leadType"],
  "additionalProperties": false
}`

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.fail(w, r, errors.NewInvalidInputError(fmt.Sprintf("malformed JSON body: %v", err)))
		return
	}
	result, err := validation.ValidateDocument(initSchema, doc)
	if err != nil {
		s.fail(w, r, errors.NewInternalError(err))
		return
	}
	if !result.Valid {
		s.fail(w, r, errors.NewValidationFailedError("initialization request failed validation", result.Errors))
		return
	}

	var req models.InitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.fail(w, r, errors.NewInvalidInputError(err.Error()))
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = actor(r)
	}

	report, err := s.deps.Wizard.Initialize(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/pre-reports/%d", basePath, report.ID))
	s.respond(w, http.StatusCreated, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.deps.Wizard.GetDetail(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, detail)
}

func (s *Server) handleStepDetail(w http.ResponseWriter, r *http.Request) {
	id, step, err := reportAndStep(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.deps.Wizard.StepDetail(r.Context(), id, step)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, detail)
}

func (s *Server) handleSaveStep(w http.ResponseWriter, r *http.Request) {
	id, step, err := reportAndStep(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	payload := map[string]interface{}{}
	if err := decodeBody(r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}
	tr, err := s.deps.Wizard.SaveStep(r.Context(), id, step, payload, actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, tr)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	payload := map[string]interface{}{}
	if err := decodeBody(r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}
	tr, err := s.deps.Wizard.Next(r.Context(), id, payload, actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, tr)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tr, err := s.deps.Wizard.Previous(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, tr)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tr, err := s.deps.Wizard.Skip(r.Context(), id, actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, tr)
}

// ResumeRequest is the body of POST /wizard/resume.
type ResumeRequest struct {
	Step int `json:"step"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req ResumeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tr, err := s.deps.Wizard.Resume(r.Context(), id, req.Step)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, tr)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tr, err := s.deps.Wizard.Submit(r.Context(), id, actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, tr)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := search.Query{
		Text:         strings.TrimSpace(q.Get("q")),
		LeadType:     models.LeadType(q.Get("leadType")),
		ReportStatus: models.ReportStatus(q.Get("status")),
		RiskLevel:    q.Get("riskLevel"),
	}

	var err error
	if raw := q.Get("clientId"); raw != "" {
		var clientID int
		if clientID, err = queryInt(r, "clientId"); err != nil {
			s.fail(w, r, err)
			return
		}
		query.ClientID = int64(clientID)
	}
	if query.From, err = queryInt(r, "from"); err != nil {
		s.fail(w, r, err)
		return
	}
	if query.Size, err = queryInt(r, "size"); err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.deps.Wizard.Search(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, steps.Catalog())
}

func (s *Server) handleLeadTypeCatalog(w http.ResponseWriter, r *http.Request) {
	lt := models.LeadType(r.PathValue("leadType"))
	if !lt.Valid() {
		s.fail(w, r, errors.NewInvalidLeadTypeError(string(lt)))
		return
	}
	s.respond(w, http.StatusOK, steps.LeadTypeCatalog(lt))
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.deps.Wizard.ListClients(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, clients)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt(r, "clientId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	products, err := s.deps.Wizard.ListProducts(r.Context(), clientID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, products)
}

func reportAndStep(r *http.Request) (int64, int, error) {
	id, err := pathInt(r, "id")
	if err != nil {
		return 0, 0, err
	}
	step, err := pathInt(r, "step")
	if err != nil {
		return 0, 0, err
	}
	return id, int(step), nil
}
