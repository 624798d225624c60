package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/ledger"
	"certificate-workers/internal/certificate/numbering"
	"certificate-workers/internal/certificate/render"
	"certificate-workers/internal/certificate/store"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/metrics"
	"certificate-workers/internal/common/observability"
	"certificate-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Saga step names, also used as metric labels.
const (
	StepLoadApplication     = "load-application"
	StepExistingCertificate = "existing-certificate"
	StepGenerateNumber      = "generate-number"
	StepRender              = "render"
	StepUploadContent       = "upload-content"
	StepInsertCertificate   = "insert-certificate"
	StepAnchorLedger        = "anchor-ledger"
)

type Options struct {
	IssuerName       string
	CallTimeout      time.Duration // bounds each content and ledger call; 0 disables
	ValidityYears    int           // 0 issues certificates without expiry
	LedgerRetryBatch int
}

type Issuer struct {
	store    store.Store
	content  content.Store
	ledger   ledger.Anchor
	renderer render.Renderer
	numbers  *numbering.Generator
	opts     Options
	now      func() time.Time
	logger   logger.Logger
}

// NewIssuer builds an issuer. anchor may be nil when no ledger is configured.
func NewIssuer(
	st store.Store,
	cs content.Store,
	anchor ledger.Anchor,
	renderer render.Renderer,
	numbers *numbering.Generator,
	opts Options,
	log logger.Logger,
) *Issuer {
	if opts.LedgerRetryBatch <= 0 {
		opts.LedgerRetryBatch = 50
	}
	return &Issuer{
		store:    st,
		content:  cs,
		ledger:   anchor,
		renderer: renderer,
		numbers:  numbers,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.WithFields(map[string]interface{}{"component": "issuance"}),
	}
}

// LedgerEnabled reports whether certificates are anchored.
func (i *Issuer) LedgerEnabled() bool {
	return i.ledger != nil
}

func (i *Issuer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, i.opts.CallTimeout)
}

// Issue produces the certificate of an APPROVED application, or returns the one that already
// exists. Concurrent calls for one application yield a single certificate.
func (i *Issuer) Issue(ctx context.Context, applicationID string) (*models.Certificate, error) {
	ctx, span := observability.StartSpan(ctx, "issuance.Issue", attribute.String("application.id", applicationID))
	defer span.End()

	cert, err := i.issue(ctx, applicationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("certificate.no", cert.CertificateNo))
	return cert, nil
}

func (i *Issuer) issue(ctx context.Context, applicationID string) (*models.Certificate, error) {
	var (
		app    *models.Application
		holder *models.User
		certNo string
		pdf    []byte
		hash   string
		cid    string
		cert   *models.Certificate
	)
	log := i.logger.WithFields(map[string]interface{}{"applicationId": applicationID})

	saga := NewSaga("issue-certificate", log).Add(
		Step{
			Name: StepLoadApplication,
			Run: func(ctx context.Context) error {
				var err error
				if app, err = i.store.GetApplication(ctx, applicationID); err != nil {
					return err
				}
				if app.Status != models.StatusApproved {
					return fmt.Errorf("%w: application %s is %s", apperrors.ErrInvalidState, app.ID, app.Status)
				}
				return nil
			},
		},
		Step{
			Name: StepExistingCertificate,
			Run: func(ctx context.Context) error {
				existing, err := i.store.GetCertificateByApplication(ctx, applicationID)
				switch {
				case err == nil:
					cert = existing
					return errHalt
				case errors.Is(err, apperrors.ErrNotFound):
					return nil
				}
				return err
			},
		},
		Step{
			Name: StepGenerateNumber,
			Run: func(ctx context.Context) error {
				var err error
				if holder, err = i.store.GetUser(ctx, app.ApplicantID); err != nil {
					return err
				}
				certNo, err = i.numbers.Generate(ctx)
				return err
			},
		},
		Step{
			Name: StepRender,
			Run: func(ctx context.Context) error {
				var err error
				pdf, err = i.renderer.Render(ctx, render.Fields{
					CertificateNo:   certNo,
					Title:           app.Title,
					CertificateType: app.CertificateType,
					IssueDate:       i.now(),
					HolderName:      holder.RealName,
					StudentNo:       holder.StudentNo,
					CollegeName:     holder.CollegeName,
					Issuer:          i.opts.IssuerName,
				})
				if err != nil {
					return err
				}
				hash = content.Hash(pdf)
				return nil
			},
		},
		Step{
			Name: StepUploadContent,
			Run: func(ctx context.Context) error {
				callCtx, cancel := i.callContext(ctx)
				defer cancel()
				var err error
				cid, err = i.content.Put(callCtx, certNo+".pdf", pdf)
				return err
			},
			Compensate: func(ctx context.Context) error {
				callCtx, cancel := i.callContext(ctx)
				defer cancel()
				return i.content.Delete(callCtx, cid)
			},
		},
		Step{
			Name: StepInsertCertificate,
			Run: func(ctx context.Context) error {
				now := i.now()
				c := &models.Certificate{
					ID:              uuid.NewString(),
					CertificateNo:   certNo,
					ApplicationID:   app.ID,
					HolderID:        holder.ID,
					Title:           app.Title,
					CertificateType: app.CertificateType,
					Status:          models.CertificateValid,
					ContentID:       cid,
					FileHash:        hash,
					IssueDate:       now,
					CreatedAt:       now,
					UpdatedAt:       now,
				}
				if i.opts.ValidityYears > 0 {
					expiry := now.AddDate(i.opts.ValidityYears, 0, 0)
					c.ExpiryDate = &expiry
				}
				if err := i.store.InsertCertificate(ctx, c); err != nil {
					return err
				}
				cert = c
				metrics.CertificatesIssued.Inc()
				return nil
			},
		},
		Step{
			Name: StepAnchorLedger,
			Run: func(ctx context.Context) error {
				if i.ledger == nil {
					return nil
				}
				if err := i.anchor(ctx, cert); err != nil {
					log.Warn("ledger anchor failed, certificate left unanchored", map[string]interface{}{
						"certificateNo": cert.CertificateNo,
						"error":         err,
					})
				}
				return nil
			},
		},
	)

	err := saga.Execute(ctx)
	if err == nil {
		if cert != nil && cert.CertificateNo == certNo {
			log.Info("certificate issued", map[string]interface{}{
				"certificateNo": cert.CertificateNo,
				"contentId":     cert.ContentID,
				"anchored":      cert.Anchored(),
			})
		}
		return cert, nil
	}

	var stepErr *StepError
	step := ""
	if errors.As(err, &stepErr) {
		step = stepErr.Step
	}

	switch {
	case errors.Is(err, store.ErrApplicationCertified):
		winner, lookupErr := i.store.GetCertificateByApplication(ctx, applicationID)
		if lookupErr != nil {
			return nil, fmt.Errorf("%w: load concurrent certificate: %w", apperrors.ErrIssuanceFailed, lookupErr)
		}
		log.Info("concurrent issuance won by another worker", map[string]interface{}{
			"certificateNo": winner.CertificateNo,
		})
		return winner, nil
	case step == StepLoadApplication, errors.Is(err, apperrors.ErrDuplicateNumber):
		return nil, err
	case step == StepUploadContent || step == StepInsertCertificate:
		log.Error("certificate issuance failed", map[string]interface{}{"step": step, "error": err})
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIssuanceFailed, err)
	}
	return nil, err
}

// anchor writes (certificateNo, fileHash) to the ledger and records the refs on cert.
func (i *Issuer) anchor(ctx context.Context, cert *models.Certificate) error {
	callCtx, cancel := i.callContext(ctx)
	defer cancel()

	receipt, err := i.ledger.Store(callCtx, cert.CertificateNo, cert.FileHash)
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("store", "failure").Inc()
		return fmt.Errorf("%w: %w", apperrors.ErrLedgerUnavailable, err)
	}
	metrics.LedgerOperations.WithLabelValues("store", "success").Inc()

	updated, err := i.store.SetLedgerAnchor(ctx, cert.ID, receipt.TxHash, receipt.BlockNumber)
	if err != nil {
		return err
	}
	if !updated {
		// Refs were set concurrently; report what is stored.
		current, err := i.store.GetCertificateByID(ctx, cert.ID)
		if err != nil {
			return err
		}
		*cert = *current
		return nil
	}

	cert.LedgerTxRef = &receipt.TxHash
	cert.LedgerBlockRef = &receipt.BlockNumber
	return nil
}

// RetryAnchor anchors a certificate whose earlier ledger write failed.
func (i *Issuer) RetryAnchor(ctx context.Context, certificateNo string) (*models.Certificate, error) {
	ctx, span := observability.StartSpan(ctx, "issuance.RetryAnchor", attribute.String("certificate.no", certificateNo))
	defer span.End()

	if i.ledger == nil {
		return nil, fmt.Errorf("%w: no ledger configured", apperrors.ErrLedgerUnavailable)
	}

	cert, err := i.store.GetCertificateByNo(ctx, certificateNo)
	if err != nil {
		return nil, err
	}
	if cert.Status == models.CertificateRevoked {
		return nil, fmt.Errorf("%w: certificate %s is revoked", apperrors.ErrInvalidState, certificateNo)
	}
	if cert.Anchored() {
		return cert, nil
	}

	if err := i.anchor(ctx, cert); err != nil {
		span.RecordError(err)
		return nil, err
	}
	i.logger.Info("certificate anchored on retry", map[string]interface{}{
		"certificateNo": cert.CertificateNo,
		"txHash":        *cert.LedgerTxRef,
	})
	return cert, nil
}

type AnchorReport struct {
	Attempted int      `json:"attempted"`
	Anchored  int      `json:"anchored"`
	Failed    int      `json:"failed"`
	FailedNos []string `json:"failedCertificateNos,omitempty"`
}

// RetryPendingAnchors anchors up to limit unanchored VALID certificates, oldest first.
// A non-positive limit uses the configured batch size.
func (i *Issuer) RetryPendingAnchors(ctx context.Context, limit int) (*AnchorReport, error) {
	if i.ledger == nil {
		return nil, fmt.Errorf("%w: no ledger configured", apperrors.ErrLedgerUnavailable)
	}
	if limit <= 0 {
		limit = i.opts.LedgerRetryBatch
	}

	pending, err := i.store.ListUnanchored(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &AnchorReport{}
	for idx := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cert := &pending[idx]
		report.Attempted++
		if err := i.anchor(ctx, cert); err != nil {
			report.Failed++
			report.FailedNos = append(report.FailedNos, cert.CertificateNo)
			i.logger.Warn("pending anchor retry failed", map[string]interface{}{
				"certificateNo": cert.CertificateNo,
				"error":         err,
			})
			continue
		}
		report.Anchored++
	}

	i.logger.Info("pending anchors retried", map[string]interface{}{
		"attempted": report.Attempted,
		"anchored":  report.Anchored,
		"failed":    report.Failed,
	})
	return report, nil
}
