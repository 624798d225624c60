// internal/certificate/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/models"
)

// Memory is an in-process Store with the same uniqueness and locking guarantees as the
// Postgres schema. Transactions are serialized and applied atomically on commit.
type Memory struct {
	txMu sync.Mutex // serializes InTx, standing in for row locks

	mu           sync.RWMutex
	users        map[string]models.User
	applications map[string]models.Application
	approvals    map[string]models.Approval // key: applicationID + "/" + level
	certificates map[string]models.Certificate

	insertCertificateErr error
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[string]models.User),
		applications: make(map[string]models.Application),
		approvals:    make(map[string]models.Approval),
		certificates: make(map[string]models.Certificate),
	}
}

// PutUser and PutApplication seed directory and application data owned by other services.
func (m *Memory) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) PutApplication(a models.Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications[a.ID] = a
}

// Approvals returns the recorded approvals of an application ordered by level.
func (m *Memory) Approvals(applicationID string) []models.Approval {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Approval
	for _, a := range m.approvals {
		if a.ApplicationID == applicationID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// CertificateCount is the number of stored certificates.
func (m *Memory) CertificateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.certificates)
}

// FailInsertCertificate makes subsequent InsertCertificate calls return err (nil clears).
func (m *Memory) FailInsertCertificate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCertificateErr = err
}

func (m *Memory) GetApplication(_ context.Context, id string) (*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, fmt.Errorf("%w: application %s", apperrors.ErrNotFound, id)
	}
	return &a, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookupUser(m.users, id)
}

func lookupUser(users map[string]models.User, id string) (*models.User, error) {
	u, ok := users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	return &u, nil
}

func (m *Memory) SigningKey(ctx context.Context, approverID string) (string, error) {
	u, err := m.GetUser(ctx, approverID)
	if err != nil {
		return "", err
	}
	if u.PublicKey == "" {
		return "", fmt.Errorf("%w: approver %s has no registered public key", apperrors.ErrKeyError, approverID)
	}
	return u.PublicKey, nil
}

func (m *Memory) findCertificate(match func(models.Certificate) bool, what string) (*models.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.certificates {
		if match(c) {
			c := c
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: certificate %s", apperrors.ErrNotFound, what)
}

func (m *Memory) GetCertificateByNo(_ context.Context, certificateNo string) (*models.Certificate, error) {
	return m.findCertificate(func(c models.Certificate) bool { return c.CertificateNo == certificateNo }, certificateNo)
}

func (m *Memory) GetCertificateByID(_ context.Context, id string) (*models.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.certificates[id]
	if !ok {
		return nil, fmt.Errorf("%w: certificate %s", apperrors.ErrNotFound, id)
	}
	return &c, nil
}

func (m *Memory) GetCertificateByApplication(_ context.Context, applicationID string) (*models.Certificate, error) {
	return m.findCertificate(func(c models.Certificate) bool { return c.ApplicationID == applicationID }, "for "+applicationID)
}

func (m *Memory) InsertCertificate(_ context.Context, c *models.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertCertificateErr != nil {
		return m.insertCertificateErr
	}
	for _, existing := range m.certificates {
		if existing.ApplicationID == c.ApplicationID {
			return fmt.Errorf("%w: %s", ErrApplicationCertified, c.ApplicationID)
		}
		if existing.CertificateNo == c.CertificateNo {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateNumber, c.CertificateNo)
		}
	}
	m.certificates[c.ID] = *c
	return nil
}

func (m *Memory) SetLedgerAnchor(_ context.Context, id, txHash string, blockNumber int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certificates[id]
	if !ok || c.LedgerTxRef != nil {
		return false, nil
	}
	c.LedgerTxRef = &txHash
	c.LedgerBlockRef = &blockNumber
	c.UpdatedAt = time.Now().UTC()
	m.certificates[id] = c
	return true, nil
}

func (m *Memory) RevokeCertificate(_ context.Context, id, reason string, at time.Time) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certificates[id]
	if !ok {
		return nil, fmt.Errorf("%w: certificate %s", apperrors.ErrNotFound, id)
	}
	if c.Status == models.CertificateRevoked {
		return nil, fmt.Errorf("%w: certificate %s", apperrors.ErrAlreadyRevoked, id)
	}
	c.Status = models.CertificateRevoked
	c.RevokeReason = reason
	c.RevokedAt = &at
	c.UpdatedAt = at
	m.certificates[id] = c
	return &c, nil
}

func (m *Memory) ListUnanchored(_ context.Context, limit int) ([]models.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Certificate
	for _, c := range m.certificates {
		if c.Status == models.CertificateValid && c.LedgerTxRef == nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==========================
// Transactions
// ==========================

func (m *Memory) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	tx := &memTx{
		users:        make(map[string]models.User, len(m.users)),
		applications: make(map[string]models.Application, len(m.applications)),
		approvals:    make(map[string]models.Approval, len(m.approvals)),
	}
	for k, v := range m.users {
		tx.users[k] = v
	}
	for k, v := range m.applications {
		tx.applications[k] = v
	}
	for k, v := range m.approvals {
		tx.approvals[k] = v
	}
	m.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	m.applications = tx.applications
	m.approvals = tx.approvals
	m.mu.Unlock()
	return nil
}

type memTx struct {
	users        map[string]models.User
	applications map[string]models.Application
	approvals    map[string]models.Approval
}

func (t *memTx) LockApplication(_ context.Context, id string) (*models.Application, error) {
	a, ok := t.applications[id]
	if !ok {
		return nil, fmt.Errorf("%w: application %s", apperrors.ErrNotFound, id)
	}
	return &a, nil
}

func (t *memTx) GetUser(_ context.Context, id string) (*models.User, error) {
	return lookupUser(t.users, id)
}

func (t *memTx) InsertApproval(_ context.Context, a *models.Approval) error {
	key := a.ApplicationID + "/" + string(a.Level)
	if _, exists := t.approvals[key]; exists {
		return fmt.Errorf("%w: %s at %s", apperrors.ErrAlreadyDecided, a.ApplicationID, a.Level)
	}
	t.approvals[key] = *a
	return nil
}

func (t *memTx) UpdateApplicationStatus(_ context.Context, id string, status models.ApplicationStatus, at time.Time) error {
	a, ok := t.applications[id]
	if !ok {
		return fmt.Errorf("%w: application %s", apperrors.ErrNotFound, id)
	}
	a.Status = status
	a.UpdatedAt = at
	t.applications[id] = a
	return nil
}

func (t *memTx) DeleteApplication(_ context.Context, id string) error {
	delete(t.applications, id)
	for k, a := range t.approvals {
		if a.ApplicationID == id {
			delete(t.approvals, k)
		}
	}
	return nil
}
