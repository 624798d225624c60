// internal/workers/certificate/issue-certificate/handler.go
package issuecertificate

import (
	"context"
	"encoding/json"
	"fmt"

	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "issue-certificate"

	// MessageCertificateIssued is correlated by application id once a certificate exists.
	MessageCertificateIssued = "certificate-issued"
)

type Issuer interface {
	Issue(ctx context.Context, applicationID string) (*models.Certificate, error)
}

// Publisher signals other process instances waiting on the issuance.
type Publisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables interface{}) error
}

type Handler struct {
	config     *Config
	issuer     Issuer
	publisher  Publisher
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler builds the handler. publisher may be nil.
func NewHandler(config *Config, issuer Issuer, publisher Publisher, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		issuer:     issuer,
		publisher:  publisher,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Handle issues the certificate for an APPROVED application. A job that is retried after a
// successful issue completes with the existing certificate.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
		"retries":            job.Retries,
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
	if input.ApplicationID == "" {
		return nil, apperrors.NewInvalidInputError("applicationId is required")
	}

	cert, err := h.issuer.Issue(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	out := toOutput(cert)
	h.logger.Info("certificate issued", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"certificateNo": out.CertificateNo,
		"anchored":      out.Anchored,
	})

	if h.publisher != nil {
		if err := h.publisher.PublishMessage(ctx, MessageCertificateIssued, input.ApplicationID, out); err != nil {
			h.logger.Warn("failed to publish issuance message", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"error":         err,
			})
		}
	}
	return out, nil
}

func toOutput(cert *models.Certificate) *Output {
	out := &Output{
		CertificateID: cert.ID,
		CertificateNo: cert.CertificateNo,
		HolderID:      cert.HolderID,
		Title:         cert.Title,
		Status:        string(cert.Status),
		ContentID:     cert.ContentID,
		FileHash:      cert.FileHash,
		Anchored:      cert.Anchored(),
		IssueDate:     cert.IssueDate.Format("2006-01-02"),
	}
	if cert.Anchored() {
		out.LedgerTxRef = *cert.LedgerTxRef
	}
	if cert.LedgerBlockRef != nil {
		out.LedgerBlockRef = *cert.LedgerBlockRef
	}
	if cert.ExpiryDate != nil {
		out.ExpiryDate = cert.ExpiryDate.Format("2006-01-02")
	}
	return out
}
