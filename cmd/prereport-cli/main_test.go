package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/models"
)

// ==========================
// Fake API
// ==========================

type recorded struct {
	method string
	path   string
	actor  string
	body   map[string]interface{}
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	server   *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/pre-reports", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(r)
		writeEnvelope(w, http.StatusCreated, models.PreReport{
			ID:           7,
			ClientID:     int64(body["clientId"].(float64)),
			LeadType:     models.LeadType(body["leadType"].(string)),
			ReportStatus: models.ReportStatusDraft,
			CurrentStep:  1,
		}, nil)
	})
	mux.HandleFunc("GET /api/v1/pre-reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.PathValue("id") != "7" {
			writeEnvelope(w, http.StatusNotFound, nil, errors.NewReportNotFoundError(99))
			return
		}
		writeEnvelope(w, http.StatusOK, models.ReportDetail{
			PreReport: &models.PreReport{
				ID: 7, ClientID: 3, ProductIDs: []int64{11}, LeadType: models.LeadTypeClient,
				ReportStatus: models.ReportStatusInProgress, CurrentStep: 2,
			},
			ClientLeadData: models.LeadData{},
			Progress: &models.Progress{
				CurrentStep: 2, TotalSteps: 10, CompletedSteps: 10, CompletionPercentage: 100,
				Steps: []models.StepStatus{{Number: 1, Title: "Basic Information", Complete: true}},
			},
		}, nil)
	})
	mux.HandleFunc("POST /api/v1/pre-reports/{id}/wizard/next", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeEnvelope(w, http.StatusOK, models.Transition{
			ReportID: 7, LeadType: models.LeadTypeClient, Action: "NEXT",
			FromStep: 2, CurrentStep: 3, TotalSteps: 10, ReportStatus: models.ReportStatusInProgress,
		}, nil)
	})
	mux.HandleFunc("POST /api/v1/pre-reports/{id}/wizard/skip", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeEnvelope(w, http.StatusUnprocessableEntity, nil, errors.NewStepNotSkippableError("CLIENT_LEAD", 3))
	})
	mux.HandleFunc("GET /api/v1/lookups/clients", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeEnvelope(w, http.StatusOK, []models.Client{{ID: 3, Name: "Acme Retail", Code: "ACME"}}, nil)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) record(r *http.Request) map[string]interface{} {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recorded{
		method: r.Method,
		path:   r.URL.Path,
		actor:  r.Header.Get("X-Actor"),
		body:   body,
	})
	return body
}

func (f *fakeAPI) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, stdErr *errors.StandardError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if stdErr != nil {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": stdErr})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

// ==========================
// Command Harness
// ==========================

// resetFlags clears values left behind by earlier Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, api *fakeAPI, sessionPath string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--api-url", api.server.URL,
		"--session", sessionPath,
		"--timeout", (5 * time.Second).String(),
	}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// ==========================
// Workflow Tests
// ==========================

func TestInitNextShow_UsesActiveReport(t *testing.T) {
	api := newFakeAPI(t)
	sessionPath := filepath.Join(t.TempDir(), "session.db")

	out, err := execute(t, api, sessionPath, "init", "--client", "3", "--product", "11", "--product", "12", "--lead-type", "client")
	require.NoError(t, err)
	assert.Contains(t, out, "Created pre-report #7 (CLIENT_LEAD)")
	req := api.last(t)
	assert.Equal(t, "CLIENT_LEAD", req.body["leadType"])
	assert.Equal(t, []interface{}{float64(11), float64(12)}, req.body["productIds"])

	out, err = execute(t, api, sessionPath, "next", "--set", "clientName=Acme Retail", "--set", "siteVisited=true")
	require.NoError(t, err)
	assert.Contains(t, out, "Step:     2 -> 3 of 10")
	req = api.last(t)
	assert.Equal(t, "/api/v1/pre-reports/7/wizard/next", req.path)
	assert.Equal(t, map[string]interface{}{"clientName": "Acme Retail", "siteVisited": true}, req.body)

	out, err = execute(t, api, sessionPath, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 100% (10/10 steps)")
	assert.Contains(t, out, "[x]  1. Basic Information")
}

func TestWhoami_SetsOperatorSentAsActor(t *testing.T) {
	api := newFakeAPI(t)
	sessionPath := filepath.Join(t.TempDir(), "session.db")

	out, err := execute(t, api, sessionPath, "whoami", "--set", "asha@truebuddy.example")
	require.NoError(t, err)
	assert.Contains(t, out, "Operator: asha@truebuddy.example")
	assert.Contains(t, out, "Active:   (none)")

	_, err = execute(t, api, sessionPath, "clients")
	require.NoError(t, err)
	assert.Equal(t, "asha@truebuddy.example", api.last(t).actor)
}

func TestUse_SwitchesActiveReport(t *testing.T) {
	api := newFakeAPI(t)
	sessionPath := filepath.Join(t.TempDir(), "session.db")

	out, err := execute(t, api, sessionPath, "use", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Active report is now #7")

	out, err = execute(t, api, sessionPath, "-o", "json", "whoami")
	require.NoError(t, err)
	var who whoami
	require.NoError(t, json.Unmarshal([]byte(out), &who))
	assert.Equal(t, int64(7), who.ActiveReport)
	require.Len(t, who.Recent, 1)
	assert.Equal(t, 2, who.Recent[0].CurrentStep)
}

func TestUse_UnknownReportKeepsSession(t *testing.T) {
	api := newFakeAPI(t)
	sessionPath := filepath.Join(t.TempDir(), "session.db")

	_, err := execute(t, api, sessionPath, "use", "99")
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeReportNotFound, se.Code)

	_, err = execute(t, api, sessionPath, "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active report")
}

func TestSkip_ServerErrorIsReturned(t *testing.T) {
	api := newFakeAPI(t)
	sessionPath := filepath.Join(t.TempDir(), "session.db")

	_, err := execute(t, api, sessionPath, "skip", "--report", "7")
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeStepNotSkippable, se.Code)
}

func TestClients_YAMLOutput(t *testing.T) {
	api := newFakeAPI(t)
	out, err := execute(t, api, filepath.Join(t.TempDir(), "session.db"), "clients", "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Acme Retail")
	assert.Contains(t, out, "code: ACME")
}

// ==========================
// Payload Tests
// ==========================

func TestLoadPayload(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "step.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("clientName: Acme\nsiteVisited: false\nrisks:\n  - fraud\n  - theft\n"), 0o644))
	jsonPath := filepath.Join(dir, "step.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"employeeCount": 40, "address": {"city": "Pune"}}`), 0o644))

	tests := []struct {
		name    string
		file    string
		sets    []string
		stdin   string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name: "yaml file",
			file: yamlPath,
			want: map[string]interface{}{"clientName": "Acme", "siteVisited": false, "risks": []interface{}{"fraud", "theft"}},
		},
		{
			name: "json file",
			file: jsonPath,
			want: map[string]interface{}{"employeeCount": 40, "address": map[string]interface{}{"city": "Pune"}},
		},
		{
			name: "overrides win and keep scalar types",
			file: yamlPath,
			sets: []string{"siteVisited=true", "employeeCount=12", "remarks=Verified on site"},
			want: map[string]interface{}{
				"clientName": "Acme", "siteVisited": true, "risks": []interface{}{"fraud", "theft"},
				"employeeCount": 12, "remarks": "Verified on site",
			},
		},
		{
			name:  "stdin",
			file:  "-",
			stdin: "remarks: from a pipe",
			want:  map[string]interface{}{"remarks": "from a pipe"},
		},
		{
			name: "empty value stays a string",
			sets: []string{"remarks="},
			want: map[string]interface{}{"remarks": ""},
		},
		{
			name:    "missing equals",
			sets:    []string{"remarks"},
			wantErr: true,
		},
		{
			name:    "missing file",
			file:    filepath.Join(dir, "absent.yaml"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadPayload(tt.file, tt.sets, bytes.NewBufferString(tt.stdin))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLeadType(t *testing.T) {
	assert.Equal(t, models.LeadTypeClient, parseLeadType("client"))
	assert.Equal(t, models.LeadTypeClient, parseLeadType("CLIENT_LEAD"))
	assert.Equal(t, models.LeadTypeTrueBuddy, parseLeadType(" truebuddy "))
	assert.Equal(t, models.LeadType("partner"), parseLeadType("partner"))
}
