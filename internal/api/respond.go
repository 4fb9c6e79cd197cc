package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"prereport-service/internal/common/errors"
)

type envelope struct {
	Data  interface{}           `json:"data,omitempty"`
	Error *errors.StandardError `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) respond(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Data: data})
}

// fail writes the error envelope. Anything that is not already a
// StandardError becomes INTERNAL_ERROR or TIMEOUT.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"requestId": requestIDFrom(r.Context()),
			"path":      r.URL.Path,
			"code":      stdErr.Code,
			"error":     err,
		})
	}
	writeJSON(w, status, envelope{Error: stdErr})
}

// decodeBody reads a JSON object. An empty body decodes to the zero value.
func decodeBody(r *http.Request, dest interface{}) error {
	raw, err := readBody(r)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("malformed JSON body: %v", err))
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("read body: %v", err))
	}
	if len(raw) > maxBodyBytes {
		return nil, errors.NewInvalidInputError("request body too large")
	}
	return raw, nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.NewInvalidInputError(fmt.Sprintf("%s must be a positive integer", name))
	}
	return v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidInputError(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

func actor(r *http.Request) string {
	return r.Header.Get(HeaderActor)
}
