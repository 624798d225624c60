// internal/models/approval.go
package models

import "time"

type ApprovalLevel string

const (
	LevelCollege ApprovalLevel = "COLLEGE"
	LevelSchool  ApprovalLevel = "SCHOOL"
)

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "APPROVE"
	ActionReject  ApprovalAction = "REJECT"
)

func (a ApprovalAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// Approval records one signed decision. It is written once and never updated.
type Approval struct {
	ID              string         `json:"id"`
	ApplicationID   string         `json:"applicationId"`
	ApproverID      string         `json:"approverId"`
	Level           ApprovalLevel  `json:"level"`
	Action          ApprovalAction `json:"action"`
	Comment         string         `json:"comment,omitempty"`
	SignatureHash   string         `json:"signatureHash"`
	SignedTimestamp int64          `json:"signedTimestamp"`
	CreatedAt       time.Time      `json:"createdAt"`
}
