// internal/workers/certificate/revoke-certificate/models.go
package revokecertificate

// Input identifies the certificate by id or, when the id is empty, by number.
type Input struct {
	CertificateID string `json:"certificateId"`
	CertificateNo string `json:"certificateNo"`
	Reason        string `json:"reason"`
	RevokedBy     string `json:"revokedBy"`
}

type Output struct {
	CertificateID string `json:"certificateId"`
	CertificateNo string `json:"certificateNo"`
	Status        string `json:"status"`
	RevokeReason  string `json:"revokeReason"`
	RevokedAt     string `json:"revokedAt"` // ISO 8601
}
