// internal/workers/communication/send-certificate-notification/handler.go
package sendcertificatenotification

import (
	"context"
	"encoding/json"
	"fmt"

	"certificate-workers/internal/certificate/notify"
	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "send-certificate-notification"
)

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) (*models.Notification, error)
}

type Handler struct {
	config     *Config
	notifier   Notifier
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, notifier Notifier, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		notifier:   notifier,
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
	if input.RecipientID == "" {
		return nil, apperrors.NewInvalidInputError("recipientId is required")
	}

	// Metadata fills template placeholders; the dedicated fields win over it.
	data := make(map[string]interface{}, len(input.Metadata)+2)
	for k, v := range input.Metadata {
		data[k] = v
	}
	if input.CertificateNo != "" {
		data["certificateNo"] = input.CertificateNo
	}
	if input.ApplicationID != "" {
		data["applicationId"] = input.ApplicationID
	}

	n, err := h.notifier.Notify(ctx, notify.Message{
		Event:       models.NotificationEvent(input.NotificationType),
		RecipientID: input.RecipientID,
		Data:        data,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		NotificationID: n.ID,
		Status:         n.Status,
		Channel:        n.Channel,
		SentAt:         n.SentAt,
	}, nil
}
