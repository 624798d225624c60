package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededMemory() *Memory {
	m := NewMemory()
	m.PutUser(models.User{ID: "stu-1", RealName: "Li Wei", Role: models.RoleStudent, CollegeID: "col-1"})
	m.PutApplication(models.Application{
		ID: "app-1", ApplicantID: "stu-1", Status: models.StatusPendingCollege, CollegeID: "col-1",
	})
	return m
}

func TestMemory_CertificateUniqueness(t *testing.T) {
	ctx := context.Background()
	m := seededMemory()

	require.NoError(t, m.InsertCertificate(ctx, &models.Certificate{ID: "c-1", CertificateNo: "N1", ApplicationID: "app-1"}))

	err := m.InsertCertificate(ctx, &models.Certificate{ID: "c-2", CertificateNo: "N2", ApplicationID: "app-1"})
	assert.ErrorIs(t, err, ErrApplicationCertified)

	err = m.InsertCertificate(ctx, &models.Certificate{ID: "c-3", CertificateNo: "N1", ApplicationID: "app-2"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateNumber)

	assert.Equal(t, 1, m.CertificateCount())

	m.FailInsertCertificate(errors.New("disk full"))
	assert.Error(t, m.InsertCertificate(ctx, &models.Certificate{ID: "c-4", CertificateNo: "N4", ApplicationID: "app-4"}))
	m.FailInsertCertificate(nil)
	assert.NoError(t, m.InsertCertificate(ctx, &models.Certificate{ID: "c-4", CertificateNo: "N4", ApplicationID: "app-4"}))
}

func TestMemory_LedgerAnchorSetOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertCertificate(ctx, &models.Certificate{
		ID: "c-1", CertificateNo: "N1", ApplicationID: "app-1", Status: models.CertificateValid,
	}))

	pending, err := m.ListUnanchored(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	ok, err := m.SetLedgerAnchor(ctx, "c-1", "0xaa", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetLedgerAnchor(ctx, "c-1", "0xbb", 4)
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := m.GetCertificateByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "0xaa", *c.LedgerTxRef)

	pending, err = m.ListUnanchored(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemory_Revoke(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertCertificate(ctx, &models.Certificate{
		ID: "c-1", CertificateNo: "N1", ApplicationID: "app-1", Status: models.CertificateValid,
	}))

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c, err := m.RevokeCertificate(ctx, "c-1", "issued in error", at)
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, c.Status)
	assert.Equal(t, at, *c.RevokedAt)

	_, err = m.RevokeCertificate(ctx, "c-1", "again", at)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRevoked)

	_, err = m.RevokeCertificate(ctx, "missing", "x", at)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemory_InTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	m := seededMemory()

	err := m.InTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertApproval(ctx, &models.Approval{ID: "a1", ApplicationID: "app-1", Level: models.LevelCollege}))
		require.NoError(t, tx.UpdateApplicationStatus(ctx, "app-1", models.StatusPendingSchool, time.Now()))
		return errors.New("abort")
	})
	require.Error(t, err)

	a, err := m.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingCollege, a.Status)
	assert.Empty(t, m.Approvals("app-1"))
}

func TestMemory_InTx_OneDecisionPerLevel(t *testing.T) {
	ctx := context.Background()
	m := seededMemory()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		decided int
		dupes   int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.InTx(ctx, func(tx Tx) error {
				return tx.InsertApproval(ctx, &models.Approval{ApplicationID: "app-1", Level: models.LevelCollege})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				decided++
			case errors.Is(err, apperrors.ErrAlreadyDecided):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, decided)
	assert.Equal(t, 7, dupes)
	assert.Len(t, m.Approvals("app-1"), 1)
}

func TestMemory_InTx_DeleteApplication(t *testing.T) {
	ctx := context.Background()
	m := seededMemory()

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		return tx.DeleteApplication(ctx, "app-1")
	}))

	_, err := m.GetApplication(ctx, "app-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
