package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/models"
)

func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(w, r, errors.NewInvalidInputError("active must be true or false"))
			return
		}
		activeOnly = v
	}
	list, err := s.deps.Employees.List(r.Context(), activeOnly)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, list)
}

func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var in models.EmployeeInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.deps.Employees.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", basePath+"/employees/"+e.ID)
	s.respond(w, http.StatusCreated, e)
}

func (s *Server) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Employees.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, e)
}

func (s *Server) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var in models.EmployeeInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.deps.Employees.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, e)
}

func (s *Server) handleDeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Employees.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoginHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.LoginHistoryFilter{
		EmployeeID: q.Get("employeeId"),
		Email:      q.Get("email"),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.fail(w, r, errors.NewInvalidInputError(fmt.Sprintf("since must be RFC3339: %v", err)))
			return
		}
		filter.Since = &since
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter.Limit = limit

	events, err := s.deps.Logins.LoginHistory(r.Context(), filter)
	if err != nil {
		s.fail(w, r, errors.NewDatabaseError("login history", err))
		return
	}
	s.respond(w, http.StatusOK, events)
}

func (s *Server) handleRecordLogin(w http.ResponseWriter, r *http.Request) {
	var event models.LoginEvent
	if err := decodeBody(r, &event); err != nil {
		s.fail(w, r, err)
		return
	}
	if event.Email == "" {
		s.fail(w, r, errors.NewInvalidInputError("email is required"))
		return
	}
	if event.IPAddress == "" {
		event.IPAddress = clientIP(r)
	}
	if event.UserAgent == "" {
		event.UserAgent = r.UserAgent()
	}

	recorded, err := s.deps.Logins.RecordLogin(r.Context(), event)
	if err != nil {
		s.fail(w, r, errors.NewDatabaseError("record login", err))
		return
	}
	s.respond(w, http.StatusCreated, recorded)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
