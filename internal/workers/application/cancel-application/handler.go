// internal/workers/application/cancel-application/handler.go
package cancelapplication

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "cancel-application"
)

type Canceller interface {
	Cancel(ctx context.Context, applicationID, studentID string) (*models.Application, error)
}

type Handler struct {
	config     *Config
	canceller  Canceller
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, canceller Canceller, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		canceller:  canceller,
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
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" || input.StudentID == "" {
		return nil, apperrors.NewInvalidInputError("applicationId and studentId are required")
	}

	app, err := h.canceller.Cancel(ctx, input.ApplicationID, input.StudentID)
	if err != nil {
		return nil, err
	}

	h.logger.Info("application cancelled", map[string]interface{}{
		"applicationId": app.ID,
		"studentId":     input.StudentID,
	})

	return &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: string(app.Status),
		ProofFileCount:    len(app.ProofFiles),
		CancelledAt:       app.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}
