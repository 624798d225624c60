// Package verification reconciles a certificate across the relational store, the ledger and
// the content store.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/ledger"
	"certificate-workers/internal/certificate/numbering"
	"certificate-workers/internal/certificate/store"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/metrics"
	"certificate-workers/internal/common/observability"
	"certificate-workers/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

const dateLayout = "2006-01-02"

// AuditRecorder receives every verdict. Failures never affect the verdict.
type AuditRecorder interface {
	Record(ctx context.Context, v *models.Verdict) error
}

type Options struct {
	DownloadBasePath string
	CallTimeout      time.Duration
}

type Engine struct {
	store   store.Store
	content content.Store
	ledger  ledger.Anchor
	audit   AuditRecorder
	opts    Options
	now     func() time.Time
	logger  logger.Logger
}

// NewEngine builds an engine. anchor and audit may be nil.
func NewEngine(st store.Store, cs content.Store, anchor ledger.Anchor, audit AuditRecorder, opts Options, log logger.Logger) *Engine {
	if opts.DownloadBasePath == "" {
		opts.DownloadBasePath = "/api/verification/download/"
	}
	return &Engine{
		store:   st,
		content: cs,
		ledger:  anchor,
		audit:   audit,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  log.WithFields(map[string]interface{}{"component": "verification"}),
	}
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.CallTimeout)
}

// DownloadURL is the public download reference of a certificate.
func (e *Engine) DownloadURL(certificateNo string) string {
	return strings.TrimSuffix(e.opts.DownloadBasePath, "/") + "/" + certificateNo
}

// Verify returns a verdict for every lookup outcome. An error means the relational store
// itself could not be read.
func (e *Engine) Verify(ctx context.Context, certificateNo string) (*models.Verdict, error) {
	ctx, span := observability.StartSpan(ctx, "verification.Verify", attribute.String("certificate.no", certificateNo))
	defer span.End()

	v, err := e.verify(ctx, certificateNo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("verdict.valid", v.Valid), attribute.String("verdict.reason", string(v.Reason)))

	reason := string(v.Reason)
	if reason == "" {
		reason = "NONE"
	}
	metrics.VerificationVerdicts.WithLabelValues(strconv.FormatBool(v.Valid), reason).Inc()

	if e.audit != nil {
		if err := e.audit.Record(ctx, v); err != nil {
			e.logger.Warn("failed to record verification audit", map[string]interface{}{
				"certificateNo": certificateNo,
				"error":         err,
			})
		}
	}
	return v, nil
}

func (e *Engine) verify(ctx context.Context, certificateNo string) (*models.Verdict, error) {
	v := &models.Verdict{
		CertificateNo:    certificateNo,
		VerificationTime: e.now(),
		Checks: models.Checks{
			Database: models.CheckSkipped,
			Ledger:   models.CheckSkipped,
			Content:  models.CheckSkipped,
		},
	}

	if !numbering.Valid(certificateNo) {
		v.Checks.Database = models.CheckFail
		return reject(v, models.ReasonNotFound, "certificate number is not well formed"), nil
	}

	cert, err := e.store.GetCertificateByNo(ctx, certificateNo)
	if errors.Is(err, apperrors.ErrNotFound) {
		v.Checks.Database = models.CheckFail
		return reject(v, models.ReasonNotFound, "certificate does not exist"), nil
	}
	if err != nil {
		return nil, err
	}

	v.Certificate = &models.CertificateSummary{
		CertificateNo:   cert.CertificateNo,
		Title:           cert.Title,
		CertificateType: cert.CertificateType,
		Status:          cert.Status,
		IssueDate:       cert.IssueDate.Format(dateLayout),
	}
	v.ContentID = cert.ContentID
	if cert.LedgerTxRef != nil {
		v.LedgerTxRef = *cert.LedgerTxRef
	}
	if cert.LedgerBlockRef != nil {
		v.LedgerBlockRef = *cert.LedgerBlockRef
	}

	if cert.Status == models.CertificateRevoked {
		v.Checks.Database = models.CheckFail
		return reject(v, models.ReasonRevoked, "certificate has been revoked"), nil
	}
	v.Checks.Database = models.CheckPass

	if e.ledger != nil && cert.Anchored() {
		callCtx, cancel := e.callContext(ctx)
		att, err := e.ledger.Verify(callCtx, cert.CertificateNo, cert.FileHash)
		cancel()
		switch {
		case err != nil:
			metrics.LedgerOperations.WithLabelValues("verify", "failure").Inc()
			e.logger.Warn("ledger verification failed", map[string]interface{}{
				"certificateNo": certificateNo,
				"error":         err,
			})
			v.Checks.Ledger = models.CheckFail
			return reject(v, models.ReasonLedgerCheckFailed, "ledger could not be queried"), nil
		case !att.Valid || att.Status == ledger.StatusRevoked:
			metrics.LedgerOperations.WithLabelValues("verify", "success").Inc()
			v.Checks.Ledger = models.CheckFail
			v.LedgerTimestamp = att.Timestamp
			return reject(v, models.ReasonLedgerMismatch, "ledger reports "+att.Status.String()), nil
		}
		metrics.LedgerOperations.WithLabelValues("verify", "success").Inc()
		v.Checks.Ledger = models.CheckPass
		v.LedgerTimestamp = att.Timestamp
	}

	if _, err := e.fetchVerified(ctx, cert); err != nil {
		e.logger.Warn("content check failed", map[string]interface{}{
			"certificateNo": certificateNo,
			"contentId":     cert.ContentID,
			"error":         err,
		})
		v.Checks.Content = models.CheckFail
		return reject(v, models.ReasonContentMismatch, "stored content does not match the recorded hash"), nil
	}
	v.Checks.Content = models.CheckPass

	v.Valid = true
	v.Message = "certificate is valid"
	v.DownloadURL = e.DownloadURL(cert.CertificateNo)
	return v, nil
}

func reject(v *models.Verdict, reason models.ReasonCode, msg string) *models.Verdict {
	v.Valid = false
	v.Reason = reason
	v.Message = msg
	return v
}

// fetchVerified loads the artifact and checks it against the recorded file hash.
func (e *Engine) fetchVerified(ctx context.Context, cert *models.Certificate) ([]byte, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	data, err := e.content.Get(callCtx, cert.ContentID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", apperrors.ErrIntegrityFailure, cert.ContentID, err)
	}
	if got := content.Hash(data); got != cert.FileHash {
		return nil, fmt.Errorf("%w: hash %s, recorded %s", apperrors.ErrIntegrityFailure, got, cert.FileHash)
	}
	return data, nil
}

// Download returns the artifact bytes after the relational and content checks.
func (e *Engine) Download(ctx context.Context, certificateNo string) ([]byte, error) {
	ctx, span := observability.StartSpan(ctx, "verification.Download", attribute.String("certificate.no", certificateNo))
	defer span.End()

	if !numbering.Valid(certificateNo) {
		return nil, fmt.Errorf("%w: certificate %s", apperrors.ErrNotFound, certificateNo)
	}

	cert, err := e.store.GetCertificateByNo(ctx, certificateNo)
	if err != nil {
		return nil, err
	}
	if cert.Status == models.CertificateRevoked {
		return nil, fmt.Errorf("%w: certificate %s", apperrors.ErrRevoked, certificateNo)
	}

	data, err := e.fetchVerified(ctx, cert)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return data, nil
}
