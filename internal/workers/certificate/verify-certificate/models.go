// internal/workers/certificate/verify-certificate/models.go
package verifycertificate

import "certificate-workers/internal/models"

type Input struct {
	CertificateNo string `json:"certificateNo"`
}

// Output is the verdict as process variables. An invalid certificate still completes the job.
type Output struct {
	Valid            bool                       `json:"valid"`
	Reason           string                     `json:"reason"`
	Message          string                     `json:"message"`
	CertificateNo    string                     `json:"certificateNo"`
	Checks           models.Checks              `json:"checks"`
	Certificate      *models.CertificateSummary `json:"certificate,omitempty"`
	LedgerTxRef      string                     `json:"ledgerTxRef,omitempty"`
	LedgerBlockRef   int64                      `json:"ledgerBlockRef,omitempty"`
	LedgerTimestamp  int64                      `json:"ledgerTimestamp,omitempty"`
	ContentID        string                     `json:"contentId,omitempty"`
	DownloadURL      string                     `json:"downloadUrl,omitempty"`
	VerificationTime string                     `json:"verificationTime"`
}
