// internal/workers/certificate/retry-ledger-anchor/models.go
package retryledgeranchor

// Input names a single certificate, or none to sweep pending anchors in a batch.
type Input struct {
	CertificateNo string `json:"certificateNo"`
	Limit         int    `json:"limit"`
}

type Output struct {
	Mode                 string   `json:"mode"` // "single" or "batch"
	CertificateNo        string   `json:"certificateNo,omitempty"`
	LedgerTxRef          string   `json:"ledgerTxRef,omitempty"`
	LedgerBlockRef       int64    `json:"ledgerBlockRef,omitempty"`
	Attempted            int      `json:"attempted"`
	Anchored             int      `json:"anchored"`
	Failed               int      `json:"failed"`
	FailedCertificateNos []string `json:"failedCertificateNos,omitempty"`
}
