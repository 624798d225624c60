package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/issuance"
	"certificate-workers/internal/certificate/ledger"
	"certificate-workers/internal/certificate/notify"
	"certificate-workers/internal/certificate/numbering"
	"certificate-workers/internal/certificate/render"
	"certificate-workers/internal/certificate/store"
	"certificate-workers/internal/certificate/verification"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []notify.Message
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) (*models.Notification, error) {
	r.messages = append(r.messages, msg)
	return &models.Notification{Status: notify.StatusSent}, r.err
}

type fixture struct {
	store    *store.Memory
	content  *content.MemoryStore
	ledger   *ledger.Memory
	notifier *recordingNotifier
	coord    *Coordinator
	cert     *models.Certificate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei"})
	st.PutApplication(models.Application{ID: "app-1", ApplicantID: "stu-1", Title: "Scholarship", Status: models.StatusApproved})

	f := &fixture{
		store:    st,
		content:  content.NewMemoryStore(),
		ledger:   ledger.NewMemory(),
		notifier: &recordingNotifier{},
	}
	issuer := issuance.NewIssuer(st, f.content, f.ledger, render.NewPDFRenderer(), numbering.NewGenerator(nil, log),
		issuance.Options{IssuerName: "Registrar"}, log)
	cert, err := issuer.Issue(context.Background(), "app-1")
	require.NoError(t, err)
	require.True(t, cert.Anchored())
	f.cert = cert

	f.coord = NewCoordinator(st, f.ledger, f.notifier, time.Second, log)
	return f
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cert, err := f.coord.Revoke(ctx, f.cert.ID, " issued in error ")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, cert.Status)
	assert.Equal(t, "issued in error", cert.RevokeReason)
	require.NotNil(t, cert.RevokedAt)

	att, err := f.ledger.Verify(ctx, cert.CertificateNo, cert.FileHash)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRevoked, att.Status)

	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, models.EventCertificateRevoked, f.notifier.messages[0].Event)
	assert.Equal(t, "stu-1", f.notifier.messages[0].RecipientID)

	_, err = f.coord.Revoke(ctx, f.cert.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRevoked)
}

func TestRevoke_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Revoke(context.Background(), "missing", "fraud")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Empty(t, f.notifier.messages)
}

func TestRevoke_WithoutReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cert, err := f.coord.Revoke(ctx, f.cert.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, cert.Status)
	assert.Empty(t, cert.RevokeReason)

	_, err = f.coord.Revoke(ctx, f.cert.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRevoked)
}

func TestRevoke_LedgerEntryWithoutRecordedReceipt(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei"})
	st.PutApplication(models.Application{ID: "app-1", ApplicantID: "stu-1", Title: "Scholarship", Status: models.StatusApproved})

	// Issued without a ledger, then written to the ledger with the receipt never recorded.
	issuer := issuance.NewIssuer(st, content.NewMemoryStore(), nil, render.NewPDFRenderer(), numbering.NewGenerator(nil, log),
		issuance.Options{IssuerName: "Registrar"}, log)
	cert, err := issuer.Issue(ctx, "app-1")
	require.NoError(t, err)
	require.False(t, cert.Anchored())

	l := ledger.NewMemory()
	_, err = l.Store(ctx, cert.CertificateNo, cert.FileHash)
	require.NoError(t, err)

	_, err = NewCoordinator(st, l, nil, time.Second, log).Revoke(ctx, cert.ID, "fraud")
	require.NoError(t, err)

	att, err := l.Verify(ctx, cert.CertificateNo, cert.FileHash)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRevoked, att.Status)
}

func TestRevoke_NeverAnchored(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei"})
	st.PutApplication(models.Application{ID: "app-1", ApplicantID: "stu-1", Title: "Scholarship", Status: models.StatusApproved})
	issuer := issuance.NewIssuer(st, content.NewMemoryStore(), nil, render.NewPDFRenderer(), numbering.NewGenerator(nil, log),
		issuance.Options{IssuerName: "Registrar"}, log)
	cert, err := issuer.Issue(ctx, "app-1")
	require.NoError(t, err)

	revoked, err := NewCoordinator(st, ledger.NewMemory(), nil, time.Second, log).Revoke(ctx, cert.ID, "fraud")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, revoked.Status)
}

func TestRevoke_FailingLedgerAndNotifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.SetFailure(errors.New("node unreachable"))
	f.notifier.err = errors.New("ses throttled")

	cert, err := f.coord.Revoke(ctx, f.cert.ID, "fraud")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, cert.Status)

	engine := verification.NewEngine(f.store, f.content, f.ledger, nil, verification.Options{}, logger.NewNoOpLogger())
	v, err := engine.Verify(ctx, cert.CertificateNo)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, models.ReasonRevoked, v.Reason)
}

func TestRevoke_WithoutLedgerOrNotifier(t *testing.T) {
	f := newFixture(t)
	coord := NewCoordinator(f.store, nil, nil, 0, logger.NewNoOpLogger())

	cert, err := coord.Revoke(context.Background(), f.cert.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, cert.Status)
}
