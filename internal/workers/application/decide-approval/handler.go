// internal/workers/application/decide-approval/handler.go
package decideapproval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"certificate-workers/internal/certificate/approval"
	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "decide-approval"
)

// Decider records one signed approval decision.
type Decider interface {
	Decide(ctx context.Context, req approval.DecideRequest) (*approval.Decision, error)
}

type Handler struct {
	config     *Config
	decider    Decider
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, decider Decider, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		decider:    decider,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		camunda.Fail(context.Background(), client, job, TaskType, h.errHandler,
			apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		camunda.Fail(context.Background(), client, job, TaskType, h.errHandler, err)
		return
	}

	if err := camunda.Complete(context.Background(), client, job, TaskType, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{"jobKey": job.Key})
}

// Execute runs the decision outside of a Zeebe job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" || input.ApproverID == "" {
		return nil, apperrors.NewInvalidInputError("applicationId and approverId are required")
	}

	decision, err := h.decider.Decide(ctx, approval.DecideRequest{
		ApplicationID:   input.ApplicationID,
		ApproverID:      input.ApproverID,
		Action:          models.ApprovalAction(input.Action),
		Comment:         input.Comment,
		Signature:       input.Signature,
		SignedTimestamp: input.SignedTimestamp,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		ApprovalID:        decision.ApprovalID,
		ApplicationID:     decision.ApplicationID,
		ApprovalLevel:     string(decision.Level),
		Action:            string(decision.Action),
		ApplicationStatus: string(decision.Status),
		DecidedAt:         time.Now().UTC().Format(time.RFC3339),
	}
	if decision.Certificate != nil {
		out.CertificateIssued = true
		out.CertificateID = decision.Certificate.ID
		out.CertificateNo = decision.Certificate.CertificateNo
	}

	h.logger.Info("approval decided", map[string]interface{}{
		"applicationId":     out.ApplicationID,
		"approvalLevel":     out.ApprovalLevel,
		"action":            out.Action,
		"applicationStatus": out.ApplicationStatus,
		"certificateIssued": out.CertificateIssued,
	})
	return out, nil
}
