package retryledgeranchor

import (
	"context"
	"errors"
	"testing"
	"time"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/issuance"
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

type fixture struct {
	ledger  *ledger.Memory
	handler *Handler
	certNos []string
}

// newFixture issues two certificates while the ledger is down, then restores it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei"})
	st.PutApplication(models.Application{ID: "app-1", ApplicantID: "stu-1", Title: "Scholarship", Status: models.StatusApproved})
	st.PutApplication(models.Application{ID: "app-2", ApplicantID: "stu-1", Title: "Award", Status: models.StatusApproved})

	l := ledger.NewMemory()
	l.SetFailure(errors.New("node unreachable"))
	issuer := issuance.NewIssuer(st, content.NewMemoryStore(), l, render.NewPDFRenderer(), numbering.NewGenerator(nil, log),
		issuance.Options{IssuerName: "Registrar"}, log)

	f := &fixture{ledger: l}
	for _, id := range []string{"app-1", "app-2"} {
		cert, err := issuer.Issue(ctx, id)
		require.NoError(t, err)
		require.False(t, cert.Anchored())
		f.certNos = append(f.certNos, cert.CertificateNo)
	}
	l.SetFailure(nil)

	f.handler = NewHandler(&Config{Timeout: 5 * time.Second, BatchSize: 10}, issuer, log)
	return f
}

func TestExecute_Single(t *testing.T) {
	f := newFixture(t)

	out, err := f.handler.Execute(context.Background(), &Input{CertificateNo: f.certNos[0]})
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, out.Mode)
	assert.NotEmpty(t, out.LedgerTxRef)

	att, err := f.ledger.Verify(context.Background(), f.certNos[0], "")
	require.NoError(t, err)
	assert.NotEqual(t, ledger.StatusNotExist, att.Status)
}

func TestExecute_Batch(t *testing.T) {
	f := newFixture(t)

	out, err := f.handler.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, ModeBatch, out.Mode)
	assert.Equal(t, 2, out.Attempted)
	assert.Equal(t, 2, out.Anchored)
	assert.Empty(t, out.FailedCertificateNos)

	out, err = f.handler.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Attempted)
}

func TestExecute_LedgerStillDown(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetFailure(errors.New("node unreachable"))

	_, err := f.handler.Execute(context.Background(), &Input{CertificateNo: f.certNos[0]})
	require.Error(t, err)
	assert.True(t, apperrors.FromError(err).Retryable)

	out, err := f.handler.Execute(context.Background(), &Input{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempted)
	assert.Equal(t, 1, out.Failed)
	assert.Len(t, out.FailedCertificateNos, 1)
}

func TestExecute_UnknownCertificate(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.Execute(context.Background(), &Input{CertificateNo: "CERT00000000000000000000000000"})
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}
