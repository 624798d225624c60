// internal/workers/certificate/revoke-certificate/handler.go
package revokecertificate

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
	TaskType = "revoke-certificate"
)

type Revoker interface {
	Revoke(ctx context.Context, certificateID, reason string) (*models.Certificate, error)
}

type Lookup interface {
	GetCertificateByNo(ctx context.Context, certificateNo string) (*models.Certificate, error)
}

type Handler struct {
	config     *Config
	revoker    Revoker
	lookup     Lookup
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, revoker Revoker, lookup Lookup, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		revoker:    revoker,
		lookup:     lookup,
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
	id := input.CertificateID
	if id == "" {
		certNo := strings.ToUpper(strings.TrimSpace(input.CertificateNo))
		if certNo == "" {
			return nil, apperrors.NewInvalidInputError("certificateId or certificateNo is required")
		}
		cert, err := h.lookup.GetCertificateByNo(ctx, certNo)
		if err != nil {
			return nil, err
		}
		id = cert.ID
	}

	cert, err := h.revoker.Revoke(ctx, id, input.Reason)
	if err != nil {
		return nil, err
	}

	h.logger.Info("certificate revoked", map[string]interface{}{
		"certificateNo": cert.CertificateNo,
		"revokedBy":     input.RevokedBy,
	})

	out := &Output{
		CertificateID: cert.ID,
		CertificateNo: cert.CertificateNo,
		Status:        string(cert.Status),
		RevokeReason:  cert.RevokeReason,
	}
	if cert.RevokedAt != nil {
		out.RevokedAt = cert.RevokedAt.UTC().Format(time.RFC3339)
	}
	return out, nil
}
