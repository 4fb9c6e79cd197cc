// Package search indexes submitted pre-reports in Elasticsearch and serves
// the report search endpoint.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"prereport-service/internal/common/database"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/models"
)

var (
	ErrIndexFailed  = errors.New("SEARCH_INDEX_FAILED")
	ErrSearchFailed = errors.New("SEARCH_QUERY_FAILED")
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Mapping is the index definition for report documents.
const Mapping = `{
  "mappings": {
    "properties": {
      "reportId":             {"type": "long"},
      "clientId":             {"type": "long"},
      "productIds":           {"type": "long"},
      "leadType":             {"type": "keyword"},
      "reportStatus":         {"type": "keyword"},
      "completionPercentage": {"type": "integer"},
      "entityName":           {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "personName":           {"type": "text"},
      "city":                 {"type": "keyword"},
      "state":                {"type": "keyword"},
      "productName":          {"type": "text"},
      "brandName":            {"type": "text"},
      "productCategory":      {"type": "keyword"},
      "riskLevel":            {"type": "keyword"},
      "infringementType":     {"type": "keyword"},
      "recommendedAction":    {"type": "keyword"},
      "submittedAt":          {"type": "date"},
      "updatedAt":            {"type": "date"}
    }
  }
}`

// indexedFields are the lead data fields copied into the document. Restricted
// fields such as confidentiality notes are never indexed.
var indexedFields = []string{
	"entityName", "personName", "city", "state", "productName", "brandName",
	"productCategory", "riskLevel", "infringementType", "recommendedAction",
}

// Document is the indexed shape of a report.
type Document struct {
	ReportID             int64                  `json:"reportId"`
	ClientID             int64                  `json:"clientId"`
	ProductIDs           []int64                `json:"productIds"`
	LeadType             models.LeadType        `json:"leadType"`
	ReportStatus         models.ReportStatus    `json:"reportStatus"`
	CompletionPercentage int                    `json:"completionPercentage"`
	SubmittedAt          *time.Time             `json:"submittedAt,omitempty"`
	UpdatedAt            time.Time              `json:"updatedAt"`
	Fields               map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Fields into the top-level object.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	base, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	if len(d.Fields) == 0 {
		return base, nil
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Fields {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// NewDocument builds the document for a report and its lead data.
func NewDocument(report *models.PreReport, data models.LeadData, completion int) Document {
	return Document{
		ReportID:             report.ID,
		ClientID:             report.ClientID,
		ProductIDs:           report.ProductIDs,
		LeadType:             report.LeadType,
		ReportStatus:         report.ReportStatus,
		CompletionPercentage: completion,
		SubmittedAt:          report.SubmittedAt,
		UpdatedAt:            report.UpdatedAt,
		Fields:               data.Subset(indexedFields),
	}
}

// Query narrows a report search. Empty filters match everything.
type Query struct {
	Text         string
	ClientID     int64
	LeadType     models.LeadType
	ReportStatus models.ReportStatus
	RiskLevel    string
	From         int
	Size         int
}

type Hit struct {
	ReportID     int64                  `json:"reportId"`
	Score        float64                `json:"score"`
	LeadType     models.LeadType        `json:"leadType"`
	ReportStatus models.ReportStatus    `json:"reportStatus"`
	Source       map[string]interface{} `json:"source"`
}

type Result struct {
	Total int64 `json:"total"`
	Took  int   `json:"took"`
	Hits  []Hit `json:"hits"`
}

type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

// EnsureIndex creates the report index when missing.
func (i *Index) EnsureIndex(ctx context.Context) error {
	es := &database.ElasticsearchClient{Client: i.client}
	return es.EnsureIndex(ctx, i.index, Mapping)
}

// IndexReport upserts the report document keyed by report id.
func (i *Index) IndexReport(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrIndexFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: strconv.FormatInt(doc.ReportID, 10),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, errorReason(res))
	}

	i.logger.Debug("report indexed", map[string]interface{}{"reportId": doc.ReportID})
	return nil
}

// Search runs the query and decodes hits.
func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	body, err := json.Marshal(BuildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrSearchFailed, err)
	}

	from, size := normalizePage(q.From, q.Size)
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, errorReason(res))
	}

	var raw struct {
		Took int `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}

	result := &Result{Total: raw.Hits.Total.Value, Took: raw.Took, Hits: make([]Hit, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		hit := Hit{Score: h.Score, Source: h.Source}
		if id, ok := h.Source["reportId"].(float64); ok {
			hit.ReportID = int64(id)
		}
		if lt, ok := h.Source["leadType"].(string); ok {
			hit.LeadType = models.LeadType(lt)
		}
		if st, ok := h.Source["reportStatus"].(string); ok {
			hit.ReportStatus = models.ReportStatus(st)
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// BuildQuery turns a Query into an Elasticsearch bool query body.
func BuildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"entityName^3", "personName^2", "brandName^2", "productName"},
				"type":   "best_fields",
			},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	if q.ClientID > 0 {
		filter = append(filter, term("clientId", q.ClientID))
	}
	if q.LeadType != "" {
		filter = append(filter, term("leadType", string(q.LeadType)))
	}
	if q.ReportStatus != "" {
		filter = append(filter, term("reportStatus", string(q.ReportStatus)))
	}
	if q.RiskLevel != "" {
		filter = append(filter, term("riskLevel", q.RiskLevel))
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"submittedAt": map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
		},
	}
}

func term(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func normalizePage(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return from, size
}

func errorReason(res *esapi.Response) string {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var parsed struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", res.Status(), parsed.Error.Type, parsed.Error.Reason)
	}
	return res.Status()
}
