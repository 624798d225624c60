// Package approval runs the two-level signed approval of certificate applications.
package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/signature"
	"certificate-workers/internal/certificate/store"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/observability"
	"certificate-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Issuer is called after an application reaches APPROVED.
type Issuer interface {
	Issue(ctx context.Context, applicationID string) (*models.Certificate, error)
}

type DecideRequest struct {
	ApplicationID   string
	ApproverID      string
	Action          models.ApprovalAction
	Comment         string
	Signature       string
	SignedTimestamp int64
}

// Decision is the committed result of Decide. Certificate is set only when the decision
// approved the application and issuance succeeded.
type Decision struct {
	ApprovalID    string
	ApplicationID string
	Level         models.ApprovalLevel
	Action        models.ApprovalAction
	Status        models.ApplicationStatus
	Certificate   *models.Certificate
}

type Workflow struct {
	store   store.Store
	keys    signature.Directory
	content content.Store
	issuer  Issuer
	now     func() time.Time
	logger  logger.Logger
}

// NewWorkflow wires the workflow. issuer may be nil, in which case approval does not issue.
func NewWorkflow(st store.Store, keys signature.Directory, cs content.Store, issuer Issuer, log logger.Logger) *Workflow {
	return &Workflow{
		store:   st,
		keys:    keys,
		content: cs,
		issuer:  issuer,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  log.WithFields(map[string]interface{}{"component": "approval"}),
	}
}

// levelFor maps an approver role to the level it decides.
func levelFor(role models.Role) (models.ApprovalLevel, bool) {
	switch role {
	case models.RoleCollegeTeacher:
		return models.LevelCollege, true
	case models.RoleSchoolTeacher:
		return models.LevelSchool, true
	}
	return "", false
}

func pendingStatusFor(level models.ApprovalLevel) models.ApplicationStatus {
	if level == models.LevelCollege {
		return models.StatusPendingCollege
	}
	return models.StatusPendingSchool
}

func nextStatus(level models.ApprovalLevel, action models.ApprovalAction) models.ApplicationStatus {
	switch {
	case action == models.ActionReject:
		return models.StatusRejected
	case level == models.LevelCollege:
		return models.StatusPendingSchool
	default:
		return models.StatusApproved
	}
}

// Decide applies one signed approval decision. Guards are evaluated in a fixed order:
// role and college, terminal state, the per-level uniqueness insert, level/status match,
// then the signature.
func (w *Workflow) Decide(ctx context.Context, req DecideRequest) (*Decision, error) {
	ctx, span := observability.StartSpan(ctx, "approval.Decide",
		attribute.String("application.id", req.ApplicationID),
		attribute.String("approval.action", string(req.Action)),
	)
	defer span.End()

	decision, err := w.decide(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log := w.logger.WithFields(map[string]interface{}{
		"applicationId": decision.ApplicationID,
		"level":         decision.Level,
		"action":        decision.Action,
		"status":        decision.Status,
	})
	log.Info("approval decision recorded", nil)

	if decision.Status == models.StatusApproved && w.issuer != nil {
		cert, err := w.issuer.Issue(ctx, decision.ApplicationID)
		if err != nil {
			log.Error("certificate issuance after approval failed", map[string]interface{}{"error": err})
		} else {
			decision.Certificate = cert
		}
	}
	return decision, nil
}

func (w *Workflow) decide(ctx context.Context, req DecideRequest) (*Decision, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: action %q", apperrors.ErrInvalidInput, req.Action)
	}

	decision := &Decision{
		ApprovalID:    uuid.NewString(),
		ApplicationID: req.ApplicationID,
		Action:        req.Action,
	}

	err := w.store.InTx(ctx, func(tx store.Tx) error {
		app, err := tx.LockApplication(ctx, req.ApplicationID)
		if err != nil {
			return err
		}

		approver, err := tx.GetUser(ctx, req.ApproverID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: unknown approver %s", apperrors.ErrForbidden, req.ApproverID)
			}
			return err
		}
		level, ok := levelFor(approver.Role)
		if !ok {
			return fmt.Errorf("%w: role %s cannot approve", apperrors.ErrForbidden, approver.Role)
		}
		if level == models.LevelCollege && approver.CollegeID != app.CollegeID {
			return fmt.Errorf("%w: approver college %s does not own application", apperrors.ErrForbidden, approver.CollegeID)
		}
		decision.Level = level

		if app.Status.IsTerminal() {
			return fmt.Errorf("%w: application %s is %s", apperrors.ErrAlreadyTerminal, app.ID, app.Status)
		}

		now := w.now()
		if err := tx.InsertApproval(ctx, &models.Approval{
			ID:              decision.ApprovalID,
			ApplicationID:   app.ID,
			ApproverID:      approver.ID,
			Level:           level,
			Action:          req.Action,
			Comment:         req.Comment,
			SignatureHash:   signature.HashSignature(req.Signature),
			SignedTimestamp: req.SignedTimestamp,
			CreatedAt:       now,
		}); err != nil {
			return err
		}

		if app.Status != pendingStatusFor(level) {
			return fmt.Errorf("%w: %s approval not expected while %s", apperrors.ErrForbidden, level, app.Status)
		}

		if err := w.verifySignature(ctx, req); err != nil {
			return err
		}

		decision.Status = nextStatus(level, req.Action)
		return tx.UpdateApplicationStatus(ctx, app.ID, decision.Status, now)
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

func (w *Workflow) verifySignature(ctx context.Context, req DecideRequest) error {
	key, err := w.keys.SigningKey(ctx, req.ApproverID)
	if err != nil {
		return err
	}

	payload := signature.Payload{
		ApplicationID: req.ApplicationID,
		Action:        string(req.Action),
		Comment:       req.Comment,
		ApproverID:    req.ApproverID,
		Timestamp:     req.SignedTimestamp,
	}
	ok, err := signature.Verify(payload.Canonical(), req.Signature, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: approver %s", apperrors.ErrInvalidSignature, req.ApproverID)
	}
	return nil
}

// Cancel withdraws an application its applicant submitted, while it still awaits the college.
// The row is deleted and its proof files are released from the content store best effort.
func (w *Workflow) Cancel(ctx context.Context, applicationID, studentID string) (*models.Application, error) {
	ctx, span := observability.StartSpan(ctx, "approval.Cancel", attribute.String("application.id", applicationID))
	defer span.End()

	var cancelled *models.Application
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		app, err := tx.LockApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.ApplicantID != studentID {
			return fmt.Errorf("%w: %s is not the applicant", apperrors.ErrForbidden, studentID)
		}
		if app.Status != models.StatusPendingCollege {
			return fmt.Errorf("%w: cannot cancel while %s", apperrors.ErrInvalidState, app.Status)
		}
		if err := tx.DeleteApplication(ctx, app.ID); err != nil {
			return err
		}
		cancelled = app
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	cancelled.Status = models.StatusCancelled
	cancelled.UpdatedAt = w.now()

	for _, f := range cancelled.ProofFiles {
		if w.content == nil || f.CID == "" {
			continue
		}
		if err := w.content.Delete(ctx, f.CID); err != nil {
			w.logger.Warn("failed to release proof file", map[string]interface{}{
				"applicationId": applicationID,
				"cid":           f.CID,
				"error":         err,
			})
		}
	}

	w.logger.Info("application cancelled", map[string]interface{}{"applicationId": applicationID})
	return cancelled, nil
}
