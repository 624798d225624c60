// Package revocation withdraws issued certificates.
package revocation

import (
	"context"
	"strings"
	"time"

	"certificate-workers/internal/certificate/ledger"
	"certificate-workers/internal/certificate/notify"
	"certificate-workers/internal/certificate/store"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/metrics"
	"certificate-workers/internal/common/observability"
	"certificate-workers/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) (*models.Notification, error)
}

type Coordinator struct {
	store       store.Store
	ledger      ledger.Anchor
	notifier    Notifier
	callTimeout time.Duration
	now         func() time.Time
	logger      logger.Logger
}

// NewCoordinator builds a coordinator. anchor and notifier may be nil.
func NewCoordinator(st store.Store, anchor ledger.Anchor, notifier Notifier, callTimeout time.Duration, log logger.Logger) *Coordinator {
	return &Coordinator{
		store:       st,
		ledger:      anchor,
		notifier:    notifier,
		callTimeout: callTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      log.WithFields(map[string]interface{}{"component": "revocation"}),
	}
}

// Revoke marks the certificate REVOKED in the relational store, which is authoritative.
// The reason is optional. Propagation to the ledger and the holder notification are best effort.
func (c *Coordinator) Revoke(ctx context.Context, certificateID, reason string) (*models.Certificate, error) {
	ctx, span := observability.StartSpan(ctx, "revocation.Revoke", attribute.String("certificate.id", certificateID))
	defer span.End()

	reason = strings.TrimSpace(reason)
	cert, err := c.store.RevokeCertificate(ctx, certificateID, reason, c.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.CertificatesRevoked.Inc()

	log := c.logger.WithFields(map[string]interface{}{
		"certificateId": cert.ID,
		"certificateNo": cert.CertificateNo,
	})
	log.Info("certificate revoked", map[string]interface{}{"reason": reason})

	c.propagate(ctx, cert, log)
	c.notify(ctx, cert, log)
	return cert, nil
}

// propagate runs even for certificates without ledger refs: the ledger write may have
// succeeded while recording its receipt failed.
func (c *Coordinator) propagate(ctx context.Context, cert *models.Certificate, log logger.Logger) {
	if c.ledger == nil {
		return
	}

	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	receipt, err := c.ledger.Revoke(callCtx, cert.CertificateNo)
	if err != nil {
		if !cert.Anchored() {
			log.Debug("ledger revocation skipped, certificate not anchored", map[string]interface{}{"error": err})
			return
		}
		metrics.LedgerOperations.WithLabelValues("revoke", "failure").Inc()
		log.Warn("ledger revocation failed, relational revocation stands", map[string]interface{}{"error": err})
		return
	}
	metrics.LedgerOperations.WithLabelValues("revoke", "success").Inc()
	log.Info("revocation recorded on ledger", map[string]interface{}{"txHash": receipt.TxHash})
}

func (c *Coordinator) notify(ctx context.Context, cert *models.Certificate, log logger.Logger) {
	if c.notifier == nil {
		return
	}
	_, err := c.notifier.Notify(ctx, notify.Message{
		Event:       models.EventCertificateRevoked,
		RecipientID: cert.HolderID,
		Data: map[string]interface{}{
			"certificateNo": cert.CertificateNo,
			"title":         cert.Title,
			"reason":        cert.RevokeReason,
		},
	})
	if err != nil {
		log.Warn("revocation notification failed", map[string]interface{}{"error": err})
	}
}
