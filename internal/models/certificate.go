// internal/models/certificate.go
package models

import "time"

type CertificateStatus string

const (
	CertificateValid   CertificateStatus = "VALID"
	CertificateRevoked CertificateStatus = "REVOKED"
	CertificateExpired CertificateStatus = "EXPIRED"
)

// Certificate is the issued artifact together with its content and ledger anchors.
// LedgerTxRef and LedgerBlockRef stay nil until anchoring succeeds.
type Certificate struct {
	ID              string            `json:"id"`
	CertificateNo   string            `json:"certificateNo"`
	ApplicationID   string            `json:"applicationId"`
	HolderID        string            `json:"holderId"`
	Title           string            `json:"title"`
	CertificateType string            `json:"certificateType"`
	Status          CertificateStatus `json:"status"`
	ContentID       string            `json:"contentId"`
	FileHash        string            `json:"fileHash"`
	LedgerTxRef     *string           `json:"ledgerTxRef,omitempty"`
	LedgerBlockRef  *int64            `json:"ledgerBlockRef,omitempty"`
	IssueDate       time.Time         `json:"issueDate"`
	ExpiryDate      *time.Time        `json:"expiryDate,omitempty"`
	RevokeReason    string            `json:"revokeReason,omitempty"`
	RevokedAt       *time.Time        `json:"revokedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func (c *Certificate) Anchored() bool {
	return c.LedgerTxRef != nil && *c.LedgerTxRef != ""
}
