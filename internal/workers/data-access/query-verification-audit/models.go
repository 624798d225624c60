// internal/workers/data-access/query-verification-audit/models.go
package queryverificationaudit

import "certificate-workers/internal/certificate/verification"

type Input struct {
	CertificateNo string     `json:"certificateNo,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Valid         *bool      `json:"valid,omitempty"`
	From          string     `json:"from,omitempty"` // RFC 3339
	To            string     `json:"to,omitempty"`   // RFC 3339
	Pagination    Pagination `json:"pagination"`
}

type Pagination struct {
	From int `json:"from"`
	Size int `json:"size"`
}

type Output struct {
	Records   []verification.AuditRecord `json:"records"`
	TotalHits int64                      `json:"totalHits"`
	Took      int64                      `json:"took"` // milliseconds
}
