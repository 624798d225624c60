// internal/workers/certificate/verify-certificate/handler.go
package verifycertificate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "verify-certificate"
)

type Verifier interface {
	Verify(ctx context.Context, certificateNo string) (*models.Verdict, error)
}

// VerdictRecorder receives every verdict for the otel meter.
type VerdictRecorder interface {
	RecordVerdict(ctx context.Context, valid bool, reason string)
}

type Handler struct {
	config     *Config
	verifier   Verifier
	recorder   VerdictRecorder
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler builds the handler. recorder may be nil.
func NewHandler(config *Config, verifier Verifier, recorder VerdictRecorder, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		verifier:   verifier,
		recorder:   recorder,
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
	certNo := strings.ToUpper(strings.TrimSpace(input.CertificateNo))
	if certNo == "" {
		return nil, apperrors.NewInvalidInputError("certificateNo is required")
	}

	v, err := h.verifier.Verify(ctx, certNo)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get certificate", err)
	}
	if h.recorder != nil {
		h.recorder.RecordVerdict(ctx, v.Valid, string(v.Reason))
	}

	h.logger.Info("certificate verified", map[string]interface{}{
		"certificateNo": certNo,
		"valid":         v.Valid,
		"reason":        v.Reason,
	})

	return &Output{
		Valid:            v.Valid,
		Reason:           string(v.Reason),
		Message:          v.Message,
		CertificateNo:    v.CertificateNo,
		Checks:           v.Checks,
		Certificate:      v.Certificate,
		LedgerTxRef:      v.LedgerTxRef,
		LedgerBlockRef:   v.LedgerBlockRef,
		LedgerTimestamp:  v.LedgerTimestamp,
		ContentID:        v.ContentID,
		DownloadURL:      v.DownloadURL,
		VerificationTime: v.VerificationTime.UTC().Format(time.RFC3339),
	}, nil
}
