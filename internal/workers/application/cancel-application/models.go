// internal/workers/application/cancel-application/models.go
package cancelapplication

type Input struct {
	ApplicationID string `json:"applicationId"`
	StudentID     string `json:"studentId"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	ProofFileCount    int    `json:"proofFileCount"`
	CancelledAt       string `json:"cancelledAt"` // ISO 8601
}
