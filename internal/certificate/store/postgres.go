// internal/certificate/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/models"

	"github.com/lib/pq"
)

const (
	uniqueViolation = "23505"

	constraintCertificateNo  = "uq_certificates_number"
	constraintCertificateApp = "uq_certificates_application"
	constraintApprovalLevel  = "uq_approvals_level"
)

// Postgres implements Store over database/sql with lib/pq.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// queryFailed marks a driver failure as a retryable database error. Deadlines keep their
// TIMEOUT classification.
func queryFailed(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrDatabase, op, err)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ==========================
// Applications & users
// ==========================

const selectApplication = `SELECT id, applicant_id, title, certificate_type, status, college_id, proof_files, created_at, updated_at
FROM applications WHERE id = $1`

func (p *Postgres) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	return getApplication(ctx, p.db, selectApplication, id)
}

func getApplication(ctx context.Context, q queryer, query, id string) (*models.Application, error) {
	var (
		a      models.Application
		status string
		proofs []byte
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.ApplicantID, &a.Title, &a.CertificateType, &status, &a.CollegeID, &proofs, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: application %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, queryFailed(fmt.Sprintf("load application %s", id), err)
	}
	a.Status = models.ApplicationStatus(status)
	if len(proofs) > 0 {
		if err := json.Unmarshal(proofs, &a.ProofFiles); err != nil {
			return nil, fmt.Errorf("decode proof files of %s: %w", id, err)
		}
	}
	return &a, nil
}

const selectUser = `SELECT u.id, u.real_name, COALESCE(u.student_no, ''), u.role, COALESCE(u.college_id, ''),
COALESCE(c.name, ''), COALESCE(u.public_key, ''), COALESCE(u.email, ''), COALESCE(u.phone, '')
FROM users u LEFT JOIN colleges c ON c.id = u.college_id WHERE u.id = $1`

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, p.db, id)
}

func getUser(ctx context.Context, q queryer, id string) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := q.QueryRowContext(ctx, selectUser, id).Scan(
		&u.ID, &u.RealName, &u.StudentNo, &role, &u.CollegeID, &u.CollegeName, &u.PublicKey, &u.Email, &u.Phone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, queryFailed(fmt.Sprintf("load user %s", id), err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (p *Postgres) SigningKey(ctx context.Context, approverID string) (string, error) {
	var key sql.NullString
	err := p.db.QueryRowContext(ctx, `SELECT public_key FROM users WHERE id = $1`, approverID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: approver %s", apperrors.ErrNotFound, approverID)
	}
	if err != nil {
		return "", queryFailed(fmt.Sprintf("load signing key of %s", approverID), err)
	}
	if !key.Valid || key.String == "" {
		return "", fmt.Errorf("%w: approver %s has no registered public key", apperrors.ErrKeyError, approverID)
	}
	return key.String, nil
}

// ==========================
// Certificates
// ==========================

const certificateColumns = `id, certificate_no, application_id, holder_id, title, certificate_type, status, content_id,
file_hash, ledger_tx_hash, ledger_block_number, issue_date, expiry_date, revoke_reason, revoked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		c       models.Certificate
		status  string
		txHash  sql.NullString
		block   sql.NullInt64
		expiry  sql.NullTime
		reason  sql.NullString
		revoked sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &c.CertificateNo, &c.ApplicationID, &c.HolderID, &c.Title, &c.CertificateType, &status, &c.ContentID,
		&c.FileHash, &txHash, &block, &c.IssueDate, &expiry, &reason, &revoked, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = models.CertificateStatus(status)
	if txHash.Valid {
		c.LedgerTxRef = &txHash.String
	}
	if block.Valid {
		c.LedgerBlockRef = &block.Int64
	}
	if expiry.Valid {
		c.ExpiryDate = &expiry.Time
	}
	c.RevokeReason = reason.String
	if revoked.Valid {
		c.RevokedAt = &revoked.Time
	}
	return &c, nil
}

func (p *Postgres) getCertificate(ctx context.Context, column, value string) (*models.Certificate, error) {
	c, err := scanCertificate(p.db.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE `+column+` = $1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: certificate %s=%s", apperrors.ErrNotFound, column, value)
	}
	if err != nil {
		return nil, queryFailed(fmt.Sprintf("load certificate %s=%s", column, value), err)
	}
	return c, nil
}

func (p *Postgres) GetCertificateByNo(ctx context.Context, certificateNo string) (*models.Certificate, error) {
	return p.getCertificate(ctx, "certificate_no", certificateNo)
}

func (p *Postgres) GetCertificateByID(ctx context.Context, id string) (*models.Certificate, error) {
	return p.getCertificate(ctx, "id", id)
}

func (p *Postgres) GetCertificateByApplication(ctx context.Context, applicationID string) (*models.Certificate, error) {
	return p.getCertificate(ctx, "application_id", applicationID)
}

func (p *Postgres) InsertCertificate(ctx context.Context, c *models.Certificate) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO certificates (
	id, certificate_no, application_id, holder_id, title, certificate_type, status, content_id, file_hash,
	ledger_tx_hash, ledger_block_number, issue_date, expiry_date, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.CertificateNo, c.ApplicationID, c.HolderID, c.Title, c.CertificateType, string(c.Status),
		c.ContentID, c.FileHash, c.LedgerTxRef, c.LedgerBlockRef, c.IssueDate, c.ExpiryDate, c.CreatedAt, c.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case constraintCertificateApp:
			return fmt.Errorf("%w: %s", ErrApplicationCertified, c.ApplicationID)
		case constraintCertificateNo:
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateNumber, c.CertificateNo)
		}
	}
	return queryFailed(fmt.Sprintf("insert certificate %s", c.CertificateNo), err)
}

func (p *Postgres) SetLedgerAnchor(ctx context.Context, id, txHash string, blockNumber int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE certificates
SET ledger_tx_hash = $2, ledger_block_number = $3, updated_at = $4
WHERE id = $1 AND ledger_tx_hash IS NULL`, id, txHash, blockNumber, time.Now().UTC())
	if err != nil {
		return false, queryFailed(fmt.Sprintf("set ledger anchor on %s", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, queryFailed("set ledger anchor rows", err)
	}
	return n == 1, nil
}

func (p *Postgres) RevokeCertificate(ctx context.Context, id, reason string, at time.Time) (*models.Certificate, error) {
	var reasonArg interface{}
	if reason != "" {
		reasonArg = reason
	}
	c, err := scanCertificate(p.db.QueryRowContext(ctx, `UPDATE certificates
SET status = 'REVOKED', revoke_reason = $2, revoked_at = $3, updated_at = $3
WHERE id = $1 AND status <> 'REVOKED'
RETURNING `+certificateColumns, id, reasonArg, at))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, queryFailed(fmt.Sprintf("revoke certificate %s", id), err)
	}

	// Nothing updated: either absent or already revoked.
	if _, err := p.GetCertificateByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: certificate %s", apperrors.ErrAlreadyRevoked, id)
}

func (p *Postgres) ListUnanchored(ctx context.Context, limit int) ([]models.Certificate, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+certificateColumns+` FROM certificates
WHERE status = 'VALID' AND ledger_tx_hash IS NULL
ORDER BY created_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, queryFailed("list unanchored certificates", err)
	}
	defer rows.Close()

	var out []models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, queryFailed("scan unanchored certificate", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("list unanchored certificates", err)
	}
	return out, nil
}

// ==========================
// Transactions
// ==========================

func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return queryFailed("begin transaction", err)
	}

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return queryFailed("commit transaction", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockApplication(ctx context.Context, id string) (*models.Application, error) {
	return getApplication(ctx, t.tx, selectApplication+` FOR UPDATE`, id)
}

func (t *pgTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, t.tx, id)
}

func (t *pgTx) InsertApproval(ctx context.Context, a *models.Approval) error {
	var comment interface{}
	if a.Comment != "" {
		comment = a.Comment
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO approvals (
	id, application_id, approver_id, approval_level, action, comment, signature_hash, signed_timestamp, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ApplicationID, a.ApproverID, string(a.Level), string(a.Action), comment, a.SignatureHash,
		a.SignedTimestamp, a.CreatedAt,
	)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == constraintApprovalLevel {
		return fmt.Errorf("%w: %s at %s", apperrors.ErrAlreadyDecided, a.ApplicationID, a.Level)
	}
	return queryFailed("insert approval", err)
}

func (t *pgTx) UpdateApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return queryFailed(fmt.Sprintf("update application %s", id), err)
	}
	return nil
}

func (t *pgTx) DeleteApplication(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return queryFailed(fmt.Sprintf("delete application %s", id), err)
	}
	return nil
}
