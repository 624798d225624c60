// Package store persists applications, approvals and certificates.
package store

import (
	"context"
	"errors"
	"time"

	"certificate-workers/internal/models"
)

// ErrApplicationCertified is returned by InsertCertificate when another certificate already
// references the application. It is distinct from a certificate-number collision.
var ErrApplicationCertified = errors.New("application already has a certificate")

// Store is the relational record. Implementations: Postgres and Memory.
type Store interface {
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	// SigningKey resolves an approver's registered public key.
	SigningKey(ctx context.Context, approverID string) (string, error)

	GetCertificateByNo(ctx context.Context, certificateNo string) (*models.Certificate, error)
	GetCertificateByID(ctx context.Context, id string) (*models.Certificate, error)
	GetCertificateByApplication(ctx context.Context, applicationID string) (*models.Certificate, error)
	InsertCertificate(ctx context.Context, c *models.Certificate) error
	// SetLedgerAnchor records ledger refs on a certificate that has none yet. It reports false
	// when refs were already present.
	SetLedgerAnchor(ctx context.Context, id, txHash string, blockNumber int64) (bool, error)
	RevokeCertificate(ctx context.Context, id, reason string, at time.Time) (*models.Certificate, error)
	ListUnanchored(ctx context.Context, limit int) ([]models.Certificate, error)

	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional surface used by the approval workflow.
type Tx interface {
	// LockApplication loads the application and holds its row lock until the transaction ends.
	LockApplication(ctx context.Context, id string) (*models.Application, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	// InsertApproval fails with ErrAlreadyDecided when the level is already decided.
	InsertApproval(ctx context.Context, a *models.Approval) error
	UpdateApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus, at time.Time) error
	DeleteApplication(ctx context.Context, id string) error
}
