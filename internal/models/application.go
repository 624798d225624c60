// internal/models/application.go
package models

import "time"

type ApplicationStatus string

const (
	StatusPendingCollege ApplicationStatus = "PENDING_COLLEGE"
	StatusPendingSchool  ApplicationStatus = "PENDING_SCHOOL"
	StatusApproved       ApplicationStatus = "APPROVED"
	StatusRejected       ApplicationStatus = "REJECTED"
	StatusCancelled      ApplicationStatus = "CANCELLED"
)

// IsTerminal reports whether no further approval decision can be applied.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// MaxProofFiles bounds the proof attachments of a single application.
const MaxProofFiles = 3

// ProofFile is a named reference to an attachment held in the content store.
type ProofFile struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

type Application struct {
	ID              string            `json:"id"`
	ApplicantID     string            `json:"applicantId"`
	Title           string            `json:"title"`
	CertificateType string            `json:"certificateType"`
	Status          ApplicationStatus `json:"status"`
	CollegeID       string            `json:"collegeId"`
	ProofFiles      []ProofFile       `json:"proofFiles,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}
