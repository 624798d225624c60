// internal/workers/certificate/download-certificate/handler.go
package downloadcertificate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/common/camunda"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "download-certificate"

	contentTypePDF = "application/pdf"
)

type Downloader interface {
	Download(ctx context.Context, certificateNo string) ([]byte, error)
	DownloadURL(certificateNo string) string
}

type Handler struct {
	config     *Config
	downloader Downloader
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, downloader Downloader, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		downloader: downloader,
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

// execute serves only artifacts that pass the relational and content checks.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	certNo := strings.ToUpper(strings.TrimSpace(input.CertificateNo))
	if certNo == "" {
		return nil, apperrors.NewInvalidInputError("certificateNo is required")
	}

	data, err := h.downloader.Download(ctx, certNo)
	if err != nil {
		return nil, err
	}

	out := &Output{
		CertificateNo: certNo,
		FileName:      certNo + ".pdf",
		ContentType:   contentTypePDF,
		Size:          len(data),
		FileHash:      content.Hash(data),
		DownloadURL:   h.downloader.DownloadURL(certNo),
	}

	if input.Inline {
		if h.config.MaxInlineBytes > 0 && len(data) > h.config.MaxInlineBytes {
			return nil, apperrors.NewBusinessRuleError(
				"Certificate too large to inline",
				fmt.Sprintf("size %d exceeds %d bytes", len(data), h.config.MaxInlineBytes),
			)
		}
		out.ContentBase64 = base64.StdEncoding.EncodeToString(data)
	}

	h.logger.Info("certificate downloaded", map[string]interface{}{
		"certificateNo": certNo,
		"size":          out.Size,
		"inline":        input.Inline,
	})
	return out, nil
}
