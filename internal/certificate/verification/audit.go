package verification

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/gowebpki/jcs"
)

// AuditIndexMapping is applied when the audit index is created.
const AuditIndexMapping = `{
  "mappings": {
    "properties": {
      "certificateNo":    {"type": "keyword"},
      "valid":            {"type": "boolean"},
      "reason":           {"type": "keyword"},
      "message":          {"type": "text"},
      "checks": {
        "properties": {
          "database": {"type": "keyword"},
          "ledger":   {"type": "keyword"},
          "content":  {"type": "keyword"}
        }
      },
      "ledgerTxRef":      {"type": "keyword"},
      "contentId":        {"type": "keyword"},
      "verificationTime": {"type": "date"},
      "evidenceHash":     {"type": "keyword"}
    }
  }
}`

const maxAuditPageSize = 100

// AuditRecord is one indexed verdict.
type AuditRecord struct {
	CertificateNo    string        `json:"certificateNo"`
	Valid            bool          `json:"valid"`
	Reason           string        `json:"reason,omitempty"`
	Message          string        `json:"message"`
	Checks           models.Checks `json:"checks"`
	LedgerTxRef      string        `json:"ledgerTxRef,omitempty"`
	ContentID        string        `json:"contentId,omitempty"`
	VerificationTime time.Time     `json:"verificationTime"`
	EvidenceHash     string        `json:"evidenceHash"`
}

// EvidenceHash is the hex SHA-256 of the RFC 8785 canonical JSON of the verdict.
func EvidenceHash(v *models.Verdict) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal verdict: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize verdict: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ElasticAudit indexes verdicts into Elasticsearch and queries them back.
type ElasticAudit struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticAudit(client *elasticsearch.Client, index string, log logger.Logger) *ElasticAudit {
	return &ElasticAudit{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "verification-audit", "index": index}),
	}
}

func (a *ElasticAudit) Index() string {
	return a.index
}

func (a *ElasticAudit) Record(ctx context.Context, v *models.Verdict) error {
	evidence, err := EvidenceHash(v)
	if err != nil {
		return err
	}

	body, err := json.Marshal(AuditRecord{
		CertificateNo:    v.CertificateNo,
		Valid:            v.Valid,
		Reason:           string(v.Reason),
		Message:          v.Message,
		Checks:           v.Checks,
		LedgerTxRef:      v.LedgerTxRef,
		ContentID:        v.ContentID,
		VerificationTime: v.VerificationTime,
		EvidenceHash:     evidence,
	})
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index: a.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("index verdict: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index verdict: %s", res.String())
	}
	return nil
}

// AuditQuery filters audit records. Zero values do not filter.
type AuditQuery struct {
	CertificateNo string
	Reason        string
	Valid         *bool
	From          *time.Time
	To            *time.Time
	Offset        int
	Size          int
}

type AuditPage struct {
	Total   int64         `json:"total"`
	Records []AuditRecord `json:"records"`
	Took    int64         `json:"took"`
}

// buildAuditQuery renders q as a search body ordered by newest verification first.
func buildAuditQuery(q AuditQuery) map[string]interface{} {
	var filters []interface{}
	if q.CertificateNo != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"certificateNo": q.CertificateNo},
		})
	}
	if q.Reason != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"reason": q.Reason},
		})
	}
	if q.Valid != nil {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"valid": *q.Valid},
		})
	}
	if q.From != nil || q.To != nil {
		r := map[string]interface{}{}
		if q.From != nil {
			r["gte"] = q.From.UTC().Format(time.RFC3339)
		}
		if q.To != nil {
			r["lte"] = q.To.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"verificationTime": r},
		})
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filters) > 0 {
		query = map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		}
	}

	return map[string]interface{}{
		"query": query,
		"sort": []interface{}{
			map[string]interface{}{"verificationTime": map[string]interface{}{"order": "desc"}},
		},
	}
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source AuditRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (a *ElasticAudit) Query(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	if q.Size < 1 {
		q.Size = 20
	}
	if q.Size > maxAuditPageSize {
		q.Size = maxAuditPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	body, err := json.Marshal(buildAuditQuery(q))
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{a.index},
		Body:  bytes.NewReader(body),
		From:  &q.Offset,
		Size:  &q.Size,
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return nil, fmt.Errorf("search audit: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search audit: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode audit search: %w", err)
	}

	page := &AuditPage{Total: sr.Hits.Total.Value, Took: sr.Took, Records: make([]AuditRecord, 0, len(sr.Hits.Hits))}
	for _, h := range sr.Hits.Hits {
		page.Records = append(page.Records, h.Source)
	}
	return page, nil
}
