package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/models"
)

type recorded struct {
	method string
	path   string
	actor  string
	body   map[string]interface{}
}

func newTestServer(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.actor = r.Header.Get(headerActor)
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second).WithActor("ops@example.com"), rec
}

func TestInitializeReport(t *testing.T) {
	c, rec := newTestServer(t, http.StatusCreated, `{"data":{"id":42,"clientId":7,"leadType":"CLIENT_LEAD","currentStep":1}}`)

	report, err := c.InitializeReport(context.Background(), models.InitRequest{
		ClientID: 7, ProductIDs: []int64{3}, LeadType: models.LeadTypeClient,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), report.ID)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/v1/pre-reports", rec.path)
	assert.Equal(t, "ops@example.com", rec.actor)
	assert.Equal(t, "CLIENT_LEAD", rec.body["leadType"])
}

func TestWizardCallsHitTheRightRoutes(t *testing.T) {
	tests := []struct {
		name   string
		call   func(*Client) (*models.Transition, error)
		method string
		path   string
	}{
		{"update", func(c *Client) (*models.Transition, error) {
			return c.UpdateStep(context.Background(), 5, 3, map[string]interface{}{"riskLevel": "HIGH"})
		}, http.MethodPut, "/api/v1/pre-reports/5/steps/3"},
		{"next", func(c *Client) (*models.Transition, error) { return c.Next(context.Background(), 5, nil) },
			http.MethodPost, "/api/v1/pre-reports/5/wizard/next"},
		{"previous", func(c *Client) (*models.Transition, error) { return c.Previous(context.Background(), 5) },
			http.MethodPost, "/api/v1/pre-reports/5/wizard/previous"},
		{"skip", func(c *Client) (*models.Transition, error) { return c.Skip(context.Background(), 5) },
			http.MethodPost, "/api/v1/pre-reports/5/wizard/skip"},
		{"resume", func(c *Client) (*models.Transition, error) { return c.Resume(context.Background(), 5, 7) },
			http.MethodPost, "/api/v1/pre-reports/5/wizard/resume"},
		{"submit", func(c *Client) (*models.Transition, error) { return c.Submit(context.Background(), 5) },
			http.MethodPost, "/api/v1/pre-reports/5/submit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestServer(t, http.StatusOK, `{"data":{"reportId":5,"currentStep":4,"totalSteps":10}}`)
			tr, err := tt.call(c)
			require.NoError(t, err)
			assert.Equal(t, 4, tr.CurrentStep)
			assert.Equal(t, tt.method, rec.method)
			assert.Equal(t, tt.path, rec.path)
		})
	}
}

func TestResumeSendsStep(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":{"reportId":5,"currentStep":7}}`)
	_, err := c.Resume(context.Background(), 5, 7)
	require.NoError(t, err)
	assert.Equal(t, float64(7), rec.body["step"])
}

func TestServerErrorDecodesStandardError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusConflict,
		`{"error":{"code":"SAVE_IN_PROGRESS","message":"Another save is in progress for this report","retryable":true}}`)

	_, err := c.Next(context.Background(), 5, map[string]interface{}{})
	require.Error(t, err)
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSaveInProgress, se.Code)
	assert.True(t, se.Retryable)
}

func TestValidationErrorKeepsFields(t *testing.T) {
	c, _ := newTestServer(t, http.StatusUnprocessableEntity,
		`{"error":{"code":"VALIDATION_FAILED","message":"Step data failed validation","metadata":{"fields":[{"field":"remarks","code":"MIN_LENGTH_VIOLATION"}]}}}`)

	_, err := c.UpdateStep(context.Background(), 5, 10, map[string]interface{}{"remarks": "short"})
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, se.Code)
	assert.Contains(t, se.Metadata, "fields")
}

func TestNonEnvelopeErrorBody(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)

	_, err := c.ListClients(context.Background())
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeExternalServiceError, se.Code)
}

func TestTransportFailure(t *testing.T) {
	c := New("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := c.GetReport(context.Background(), 1)
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Contains(t, []errors.ErrorCode{errors.ErrCodeExternalServiceError, errors.ErrCodeTimeout}, se.Code)
}

func TestLookupsAndCatalog(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":[{"id":10,"clientId":1,"name":"Bolts"}]}`)
	products, err := c.ListProducts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "/api/v1/lookups/clients/1/products", rec.path)

	c, rec = newTestServer(t, http.StatusOK, `{"data":{"leadType":"CLIENT_LEAD","totalSteps":10,"steps":[]}}`)
	cat, err := c.StepCatalog(context.Background(), models.LeadTypeClient)
	require.NoError(t, err)
	assert.Equal(t, 10, cat.TotalSteps)
	assert.Equal(t, "/api/v1/steps/CLIENT_LEAD", rec.path)
}
