// internal/workers/application/decide-approval/models.go
package decideapproval

type Input struct {
	ApplicationID   string `json:"applicationId"`
	ApproverID      string `json:"approverId"`
	Action          string `json:"action"` // APPROVE or REJECT
	Comment         string `json:"comment"`
	Signature       string `json:"signature"`       // base64 SHA256withRSA
	SignedTimestamp int64  `json:"signedTimestamp"` // unix ms, part of the signed payload
}

type Output struct {
	ApprovalID        string `json:"approvalId"`
	ApplicationID     string `json:"applicationId"`
	ApprovalLevel     string `json:"approvalLevel"`
	Action            string `json:"action"`
	ApplicationStatus string `json:"applicationStatus"`
	CertificateIssued bool   `json:"certificateIssued"`
	CertificateID     string `json:"certificateId,omitempty"`
	CertificateNo     string `json:"certificateNo,omitempty"`
	DecidedAt         string `json:"decidedAt"` // ISO 8601
}
