package issuance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/ledger"
	"certificate-workers/internal/certificate/numbering"
	"certificate-workers/internal/certificate/render"
	"certificate-workers/internal/certificate/store"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingContent records every cid it has been asked to delete.
type trackingContent struct {
	*content.MemoryStore
	mu      sync.Mutex
	puts    []string
	deletes []string
	delay   time.Duration
}

func newTrackingContent() *trackingContent {
	return &trackingContent{MemoryStore: content.NewMemoryStore()}
}

func (c *trackingContent) Put(ctx context.Context, name string, data []byte) (string, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	cid, err := c.MemoryStore.Put(ctx, name, data)
	c.mu.Lock()
	c.puts = append(c.puts, cid)
	c.mu.Unlock()
	return cid, err
}

func (c *trackingContent) Delete(ctx context.Context, cid string) error {
	c.mu.Lock()
	c.deletes = append(c.deletes, cid)
	c.mu.Unlock()
	return c.MemoryStore.Delete(ctx, cid)
}

type fixture struct {
	store   *store.Memory
	content *trackingContent
	ledger  *ledger.Memory
	issuer  *Issuer
}

func newFixture(t *testing.T, withLedger bool, opts Options) *fixture {
	t.Helper()
	st := store.NewMemory()
	st.PutUser(models.User{
		ID: "stu-1", RealName: "Li Wei", StudentNo: "2020123456", Role: models.RoleStudent,
		CollegeID: "col-1", CollegeName: "School of Engineering",
	})
	st.PutApplication(models.Application{
		ID: "app-1", ApplicantID: "stu-1", Title: "Excellent Graduate", CertificateType: "Honor",
		Status: models.StatusApproved, CollegeID: "col-1",
	})
	st.PutApplication(models.Application{
		ID: "app-pending", ApplicantID: "stu-1", Status: models.StatusPendingSchool, CollegeID: "col-1",
	})

	f := &fixture{store: st, content: newTrackingContent()}
	var anchor ledger.Anchor
	if withLedger {
		f.ledger = ledger.NewMemory()
		anchor = f.ledger
	}
	if opts.IssuerName == "" {
		opts.IssuerName = "Academic Affairs Office"
	}

	log := logger.NewTestLogger(t)
	f.issuer = NewIssuer(st, f.content, anchor, render.NewPDFRenderer(), numbering.NewGenerator(nil, log), opts, log)
	return f
}

// ==========================================
// Issue
// ==========================================

func TestIssue_WithLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, Options{ValidityYears: 4})

	cert, err := f.issuer.Issue(ctx, "app-1")
	require.NoError(t, err)

	assert.True(t, numbering.Valid(cert.CertificateNo))
	assert.Equal(t, models.CertificateValid, cert.Status)
	assert.Equal(t, "stu-1", cert.HolderID)
	assert.True(t, cert.Anchored())
	require.NotNil(t, cert.ExpiryDate)
	assert.Equal(t, cert.IssueDate.AddDate(4, 0, 0), *cert.ExpiryDate)

	data, err := f.content.Get(ctx, cert.ContentID)
	require.NoError(t, err)
	assert.Equal(t, content.Hash(data), cert.FileHash)

	att, err := f.ledger.Verify(ctx, cert.CertificateNo, cert.FileHash)
	require.NoError(t, err)
	assert.True(t, att.Valid)

	stored, err := f.store.GetCertificateByNo(ctx, cert.CertificateNo)
	require.NoError(t, err)
	assert.Equal(t, *cert.LedgerTxRef, *stored.LedgerTxRef)
}

func TestIssue_WithoutLedger(t *testing.T) {
	f := newFixture(t, false, Options{})

	cert, err := f.issuer.Issue(context.Background(), "app-1")
	require.NoError(t, err)
	assert.False(t, cert.Anchored())
	assert.Nil(t, cert.ExpiryDate)
	assert.False(t, f.issuer.LedgerEnabled())
}

func TestIssue_ReturnsExistingCertificate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, Options{})

	first, err := f.issuer.Issue(ctx, "app-1")
	require.NoError(t, err)
	second, err := f.issuer.Issue(ctx, "app-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.store.CertificateCount())
	assert.Len(t, f.content.puts, 1)
}

func TestIssue_Preconditions(t *testing.T) {
	f := newFixture(t, false, Options{})

	_, err := f.issuer.Issue(context.Background(), "app-pending")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.issuer.Issue(context.Background(), "app-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Empty(t, f.content.puts)
}

func TestIssue_LedgerFailureStillIssues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, Options{})
	f.ledger.SetFailure(errors.New("node unreachable"))

	cert, err := f.issuer.Issue(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, cert.Anchored())
	assert.Empty(t, f.content.deletes)

	stored, err := f.store.GetCertificateByNo(ctx, cert.CertificateNo)
	require.NoError(t, err)
	assert.Nil(t, stored.LedgerTxRef)
}

func TestIssue_InsertFailureCompensates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, Options{})
	f.store.FailInsertCertificate(errors.New("connection reset"))

	_, err := f.issuer.Issue(ctx, "app-1")
	assert.ErrorIs(t, err, apperrors.ErrIssuanceFailed)

	require.Len(t, f.content.puts, 1)
	assert.Equal(t, f.content.puts, f.content.deletes)
	exists, err := f.content.Exists(ctx, f.content.puts[0])
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, f.store.CertificateCount())
}

func TestIssue_DuplicateNumberIsRetryable(t *testing.T) {
	f := newFixture(t, false, Options{})
	f.store.FailInsertCertificate(fmt.Errorf("%w: CERT...", apperrors.ErrDuplicateNumber))

	_, err := f.issuer.Issue(context.Background(), "app-1")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateNumber)
	assert.True(t, apperrors.FromError(err).Retryable)
	assert.Len(t, f.content.deletes, 1)
}

func TestIssue_UploadTimeout(t *testing.T) {
	f := newFixture(t, false, Options{CallTimeout: 20 * time.Millisecond})
	f.content.delay = time.Second

	_, err := f.issuer.Issue(context.Background(), "app-1")
	assert.ErrorIs(t, err, apperrors.ErrIssuanceFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, f.store.CertificateCount())
}

func TestIssue_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, Options{})

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cert, err := f.issuer.Issue(ctx, "app-1")
			errs[i] = err
			if err == nil {
				ids[i] = cert.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.store.CertificateCount())

	winner, err := f.store.GetCertificateByApplication(ctx, "app-1")
	require.NoError(t, err)
	exists, err := f.content.Exists(ctx, winner.ContentID)
	require.NoError(t, err)
	assert.True(t, exists)
}

// ==========================================
// Anchor retries
// ==========================================

func TestRetryAnchor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, Options{})
	f.ledger.SetFailure(errors.New("node unreachable"))

	cert, err := f.issuer.Issue(ctx, "app-1")
	require.NoError(t, err)
	require.False(t, cert.Anchored())

	_, err = f.issuer.RetryAnchor(ctx, cert.CertificateNo)
	assert.ErrorIs(t, err, apperrors.ErrLedgerUnavailable)

	f.ledger.SetFailure(nil)
	anchored, err := f.issuer.RetryAnchor(ctx, cert.CertificateNo)
	require.NoError(t, err)
	assert.True(t, anchored.Anchored())

	again, err := f.issuer.RetryAnchor(ctx, cert.CertificateNo)
	require.NoError(t, err)
	assert.Equal(t, *anchored.LedgerTxRef, *again.LedgerTxRef)

	_, err = f.issuer.RetryAnchor(ctx, "CERT20240101120000000000000099")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRetryAnchor_RevokedOrNoLedger(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, true, Options{})
	f.ledger.SetFailure(errors.New("down"))
	cert, err := f.issuer.Issue(ctx, "app-1")
	require.NoError(t, err)
	_, err = f.store.RevokeCertificate(ctx, cert.ID, "error", time.Now())
	require.NoError(t, err)
	f.ledger.SetFailure(nil)

	_, err = f.issuer.RetryAnchor(ctx, cert.CertificateNo)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	noLedger := newFixture(t, false, Options{})
	_, err = noLedger.issuer.RetryAnchor(ctx, cert.CertificateNo)
	assert.ErrorIs(t, err, apperrors.ErrLedgerUnavailable)
	_, err = noLedger.issuer.RetryPendingAnchors(ctx, 10)
	assert.ErrorIs(t, err, apperrors.ErrLedgerUnavailable)
}

func TestRetryPendingAnchors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, Options{LedgerRetryBatch: 10})
	f.store.PutApplication(models.Application{
		ID: "app-2", ApplicantID: "stu-1", Title: "Scholarship", Status: models.StatusApproved, CollegeID: "col-1",
	})

	f.ledger.SetFailure(errors.New("down"))
	_, err := f.issuer.Issue(ctx, "app-1")
	require.NoError(t, err)
	_, err = f.issuer.Issue(ctx, "app-2")
	require.NoError(t, err)

	report, err := f.issuer.RetryPendingAnchors(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, report.FailedNos, 2)

	f.ledger.SetFailure(nil)
	report, err = f.issuer.RetryPendingAnchors(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Anchored)
	assert.Zero(t, report.Failed)

	pending, err := f.store.ListUnanchored(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
