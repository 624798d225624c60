// internal/workers/certificate/retry-ledger-anchor/handler.go
package retryledgeranchor

import (
	"context"
	"encoding/json"
	"fmt"

	"certificate-workers/internal/certificate/issuance"
	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "retry-ledger-anchor"

	ModeSingle = "single"
	ModeBatch  = "batch"
)

type Anchorer interface {
	RetryAnchor(ctx context.Context, certificateNo string) (*models.Certificate, error)
	RetryPendingAnchors(ctx context.Context, limit int) (*issuance.AnchorReport, error)
}

type Handler struct {
	config     *Config
	anchorer   Anchorer
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, anchorer Anchorer, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		anchorer:   anchorer,
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
	if input.CertificateNo != "" {
		return h.retryOne(ctx, input.CertificateNo)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.BatchSize
	}
	report, err := h.anchorer.RetryPendingAnchors(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Output{
		Mode:                 ModeBatch,
		Attempted:            report.Attempted,
		Anchored:             report.Anchored,
		Failed:               report.Failed,
		FailedCertificateNos: report.FailedNos,
	}, nil
}

// retryOne returns ledger failures as LEDGER_UNAVAILABLE so the job is retried.
func (h *Handler) retryOne(ctx context.Context, certificateNo string) (*Output, error) {
	cert, err := h.anchorer.RetryAnchor(ctx, certificateNo)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Mode:          ModeSingle,
		CertificateNo: cert.CertificateNo,
		Attempted:     1,
		Anchored:      1,
	}
	if cert.LedgerTxRef != nil {
		out.LedgerTxRef = *cert.LedgerTxRef
	}
	if cert.LedgerBlockRef != nil {
		out.LedgerBlockRef = *cert.LedgerBlockRef
	}
	return out, nil
}
