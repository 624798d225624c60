// internal/workers/certificate/issue-certificate/models.go
package issuecertificate

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	CertificateID  string `json:"certificateId"`
	CertificateNo  string `json:"certificateNo"`
	HolderID       string `json:"holderId"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	ContentID      string `json:"contentId"`
	FileHash       string `json:"fileHash"`
	Anchored       bool   `json:"anchored"`
	LedgerTxRef    string `json:"ledgerTxRef,omitempty"`
	LedgerBlockRef int64  `json:"ledgerBlockRef,omitempty"`
	IssueDate      string `json:"issueDate"` // YYYY-MM-DD
	ExpiryDate     string `json:"expiryDate,omitempty"`
}
