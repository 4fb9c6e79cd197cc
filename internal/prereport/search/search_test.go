package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereport-service/internal/common/logger"
	"prereport-service/internal/models"
)

type fakeES struct {
	indexed map[string]map[string]interface{}
	search  map[string]interface{}
	status  int
}

func newFakeES(t *testing.T) (*fakeES, *Index) {
	t.Helper()
	fake := &fakeES{indexed: map[string]map[string]interface{}{}, status: http.StatusOK}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)

		if fake.status != http.StatusOK {
			w.WriteHeader(fake.status)
			_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index [pre-reports]"}}`))
			return
		}

		switch {
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/pre-reports/_doc/"):
			doc := map[string]interface{}{}
			require.NoError(t, json.Unmarshal(body, &doc))
			fake.indexed[strings.TrimPrefix(r.URL.Path, "/pre-reports/_doc/")] = doc
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result":"created"}`))
		case strings.HasSuffix(r.URL.Path, "/_search"):
			fake.search = map[string]interface{}{}
			require.NoError(t, json.Unmarshal(body, &fake.search))
			assert.Equal(t, "0", r.URL.Query().Get("from"))
			assert.Equal(t, "100", r.URL.Query().Get("size"))
			_, _ = w.Write([]byte(`{
				"took": 4,
				"hits": {
					"total": {"value": 1},
					"hits": [{"_score": 2.5, "_source": {
						"reportId": 12, "leadType": "CLIENT_LEAD",
						"reportStatus": "SUBMITTED", "entityName": "Acme Traders"
					}}]
				}
			}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return fake, New(client, "pre-reports", logger.NewTestLogger(t))
}

func TestIndexReport(t *testing.T) {
	fake, idx := newFakeES(t)
	submitted := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	doc := NewDocument(&models.PreReport{
		ID:           12,
		ClientID:     3,
		ProductIDs:   []int64{4},
		LeadType:     models.LeadTypeClient,
		ReportStatus: models.ReportStatusSubmitted,
		SubmittedAt:  &submitted,
		UpdatedAt:    submitted,
	}, models.LeadData{
		"entityName":          "Acme Traders",
		"riskLevel":           "HIGH",
		"confidentialityNote": "do not share",
	}, 100)

	require.NoError(t, idx.IndexReport(context.Background(), doc))

	stored := fake.indexed["12"]
	require.NotNil(t, stored)
	assert.Equal(t, "Acme Traders", stored["entityName"])
	assert.Equal(t, "HIGH", stored["riskLevel"])
	assert.Equal(t, float64(100), stored["completionPercentage"])
	assert.NotContains(t, stored, "confidentialityNote")
}

func TestIndexReport_ErrorResponse(t *testing.T) {
	fake, idx := newFakeES(t)
	fake.status = http.StatusNotFound

	err := idx.IndexReport(context.Background(), Document{ReportID: 1})
	assert.ErrorIs(t, err, ErrIndexFailed)
	assert.ErrorContains(t, err, "index_not_found_exception")
}

func TestSearch(t *testing.T) {
	fake, idx := newFakeES(t)

	res, err := idx.Search(context.Background(), Query{
		Text:     "acme",
		ClientID: 3,
		LeadType: models.LeadTypeClient,
		Size:     500,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, 4, res.Took)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, int64(12), res.Hits[0].ReportID)
	assert.Equal(t, models.ReportStatusSubmitted, res.Hits[0].ReportStatus)

	query := fake.search["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, query["filter"], 2)
}

func TestBuildQuery_MatchAllWithoutText(t *testing.T) {
	body := BuildQuery(Query{Text: "   "})
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})

	must := boolQuery["must"].([]interface{})
	require.Len(t, must, 1)
	assert.Contains(t, must[0], "match_all")
	assert.NotContains(t, boolQuery, "filter")
}

func TestNormalizePage(t *testing.T) {
	from, size := normalizePage(-3, 0)
	assert.Equal(t, 0, from)
	assert.Equal(t, DefaultSize, size)

	_, size = normalizePage(0, 1000)
	assert.Equal(t, MaxSize, size)
}
