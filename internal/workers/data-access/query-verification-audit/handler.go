// internal/workers/data-access/query-verification-audit/handler.go
package queryverificationaudit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"certificate-workers/internal/certificate/verification"
	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "query-verification-audit"
)

var validReasons = map[string]bool{
	string(models.ReasonNotFound):          true,
	string(models.ReasonRevoked):           true,
	string(models.ReasonLedgerMismatch):    true,
	string(models.ReasonLedgerCheckFailed): true,
	string(models.ReasonContentMismatch):   true,
}

type AuditSearcher interface {
	Query(ctx context.Context, q verification.AuditQuery) (*verification.AuditPage, error)
	Index() string
}

type Handler struct {
	config     *Config
	audit      AuditSearcher
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, audit AuditSearcher, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		audit:      audit,
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
	q, err := toQuery(input)
	if err != nil {
		return nil, err
	}

	page, err := h.audit.Query(ctx, q)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("elasticsearch", err)
		}
		return nil, apperrors.NewSearchQueryFailedError(h.audit.Index(), err)
	}

	h.logger.Debug("audit query executed", map[string]interface{}{
		"totalHits": page.Total,
		"returned":  len(page.Records),
		"took_ms":   page.Took,
	})

	return &Output{
		Records:   page.Records,
		TotalHits: page.Total,
		Took:      page.Took,
	}, nil
}

func toQuery(input *Input) (verification.AuditQuery, error) {
	q := verification.AuditQuery{
		CertificateNo: strings.ToUpper(strings.TrimSpace(input.CertificateNo)),
		Reason:        strings.ToUpper(strings.TrimSpace(input.Reason)),
		Valid:         input.Valid,
		Offset:        input.Pagination.From,
		Size:          input.Pagination.Size,
	}
	if q.Reason != "" && !validReasons[q.Reason] {
		return q, apperrors.NewInvalidInputError(fmt.Sprintf("unknown reason %q", input.Reason))
	}

	var err error
	if q.From, err = parseTime("from", input.From); err != nil {
		return q, err
	}
	if q.To, err = parseTime("to", input.To); err != nil {
		return q, err
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return q, apperrors.NewInvalidInputError("to must not be before from")
	}
	return q, nil
}

func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("%s: %v", field, err))
	}
	return &t, nil
}
