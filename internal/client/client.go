// Package client is the typed REST client for the pre-report API.
package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"prereport-service/internal/common/errors"
	commonhttp "prereport-service/internal/common/http"
	"prereport-service/internal/models"
	"prereport-service/pkg/registry"
)

const headerActor = "X-Actor"

type Client struct {
	http *commonhttp.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{http: commonhttp.NewClient(baseURL, timeout)}
}

// WithActor returns a client that identifies the operator on every call.
func (c *Client) WithActor(actor string) *Client {
	return &Client{http: c.http.WithHeader(headerActor, actor)}
}

func (c *Client) InitializeReport(ctx context.Context, req models.InitRequest) (*models.PreReport, error) {
	var out models.PreReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/pre-reports", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetReport(ctx context.Context, id int64) (*models.ReportDetail, error) {
	var out models.ReportDetail
	if err := c.do(ctx, http.MethodGet, reportPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StepDetail(ctx context.Context, id int64, step int) (*models.StepDetail, error) {
	var out models.StepDetail
	if err := c.do(ctx, http.MethodGet, reportPath(id, "/steps/"+strconv.Itoa(step)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStep saves one step without moving the wizard pointer.
func (c *Client) UpdateStep(ctx context.Context, id int64, step int, payload map[string]interface{}) (*models.Transition, error) {
	return c.transition(ctx, reportPath(id, "/steps/"+strconv.Itoa(step)), http.MethodPut, nonNil(payload))
}

func (c *Client) Next(ctx context.Context, id int64, payload map[string]interface{}) (*models.Transition, error) {
	return c.transition(ctx, reportPath(id, "/wizard/next"), http.MethodPost, nonNil(payload))
}

func (c *Client) Previous(ctx context.Context, id int64) (*models.Transition, error) {
	return c.transition(ctx, reportPath(id, "/wizard/previous"), http.MethodPost, nil)
}

func (c *Client) Skip(ctx context.Context, id int64) (*models.Transition, error) {
	return c.transition(ctx, reportPath(id, "/wizard/skip"), http.MethodPost, nil)
}

func (c *Client) Resume(ctx context.Context, id int64, step int) (*models.Transition, error) {
	return c.transition(ctx, reportPath(id, "/wizard/resume"), http.MethodPost, map[string]int{"step": step})
}

func (c *Client) Submit(ctx context.Context, id int64) (*models.Transition, error) {
	return c.transition(ctx, reportPath(id, "/submit"), http.MethodPost, nil)
}

func (c *Client) ListClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	if err := c.do(ctx, http.MethodGet, "/api/v1/lookups/clients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProducts(ctx context.Context, clientID int64) ([]models.Product, error) {
	var out []models.Product
	path := fmt.Sprintf("/api/v1/lookups/clients/%d/products", clientID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StepCatalog fetches the step sequence for one lead type.
func (c *Client) StepCatalog(ctx context.Context, leadType models.LeadType) (*registry.LeadTypeCatalog, error) {
	var out registry.LeadTypeCatalog
	if err := c.do(ctx, http.MethodGet, "/api/v1/steps/"+url.PathEscape(string(leadType)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordLogin appends to the login history.
func (c *Client) RecordLogin(ctx context.Context, event models.LoginEvent) (*models.LoginEvent, error) {
	var out models.LoginEvent
	if err := c.do(ctx, http.MethodPost, "/api/v1/login-history", event, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) transition(ctx context.Context, path, method string, body interface{}) (*models.Transition, error) {
	var out models.Transition
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type envelope struct {
	Data  json.RawMessage       `json:"data"`
	Error *errors.StandardError `json:"error"`
}

// do sends one request and unwraps the response envelope. Server errors come
// back as *errors.StandardError; transport failures as EXTERNAL_SERVICE_ERROR
// or TIMEOUT.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	req, err := c.http.NewJSONRequest(ctx, method, path, in)
	if err != nil {
		return errors.NewInternalError(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.NewTimeoutError("prereport-api", err)
		}
		return errors.NewExternalServiceError("prereport-api", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewExternalServiceError("prereport-api", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return errors.NewExternalServiceError("prereport-api",
				fmt.Errorf("status %d: undecodable response: %w", resp.StatusCode, err))
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if env.Error != nil {
			return env.Error
		}
		return errors.NewExternalServiceError("prereport-api", fmt.Errorf("status %d", resp.StatusCode))
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.NewExternalServiceError("prereport-api", fmt.Errorf("decode data: %w", err))
	}
	return nil
}

func reportPath(id int64, suffix string) string {
	return fmt.Sprintf("/api/v1/pre-reports/%d%s", id, suffix)
}

func nonNil(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return map[string]interface{}{}
	}
	return payload
}
