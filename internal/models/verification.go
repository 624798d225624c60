// internal/models/verification.go
package models

import "time"

type CheckStatus string

const (
	CheckPass    CheckStatus = "PASS"
	CheckFail    CheckStatus = "FAIL"
	CheckSkipped CheckStatus = "SKIPPED"
)

type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonNotFound          ReasonCode = "NOT_FOUND"
	ReasonRevoked           ReasonCode = "REVOKED"
	ReasonLedgerMismatch    ReasonCode = "LEDGER_MISMATCH"
	ReasonLedgerCheckFailed ReasonCode = "LEDGER_CHECK_FAILED"
	ReasonContentMismatch   ReasonCode = "CONTENT_MISMATCH"
)

// Checks holds the per-store evidence of a verification, recorded even when the verdict
// short-circuits.
type Checks struct {
	Database CheckStatus `json:"database"`
	Ledger   CheckStatus `json:"ledger"`
	Content  CheckStatus `json:"content"`
}

type CertificateSummary struct {
	CertificateNo   string            `json:"certificateNo"`
	Title           string            `json:"title"`
	CertificateType string            `json:"certificateType"`
	Status          CertificateStatus `json:"status"`
	IssueDate       string            `json:"issueDate"`
}

// Verdict is the reconciled outcome of checking a certificate against all three stores.
type Verdict struct {
	Valid            bool                `json:"valid"`
	Reason           ReasonCode          `json:"reason,omitempty"`
	Message          string              `json:"message"`
	CertificateNo    string              `json:"certificateNo"`
	Checks           Checks              `json:"checks"`
	Certificate      *CertificateSummary `json:"certificate,omitempty"`
	LedgerTxRef      string              `json:"ledgerTxRef,omitempty"`
	LedgerBlockRef   int64               `json:"ledgerBlockRef,omitempty"`
	LedgerTimestamp  int64               `json:"ledgerTimestamp,omitempty"`
	ContentID        string              `json:"contentId,omitempty"`
	DownloadURL      string              `json:"downloadUrl,omitempty"`
	VerificationTime time.Time           `json:"verificationTime"`
}
