package issuecertificate

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

type published struct {
	name, key string
}

type recordingPublisher struct {
	messages []published
	err      error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, name, key string, _ interface{}) error {
	p.messages = append(p.messages, published{name, key})
	return p.err
}

func newTestHandler(t *testing.T, anchor ledger.Anchor) (*Handler, *content.MemoryStore) {
	t.Helper()
	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei", StudentNo: "2020123456", CollegeName: "School of Engineering"})
	st.PutApplication(models.Application{
		ID: "app-1", ApplicantID: "stu-1", Title: "Excellent Graduate", CertificateType: "Honor",
		Status: models.StatusApproved, CollegeID: "col-1",
	})
	st.PutApplication(models.Application{ID: "app-2", ApplicantID: "stu-1", Status: models.StatusPendingSchool})

	log := logger.NewTestLogger(t)
	cs := content.NewMemoryStore()
	issuer := issuance.NewIssuer(st, cs, anchor, render.NewPDFRenderer(), numbering.NewGenerator(nil, log),
		issuance.Options{IssuerName: "Academic Affairs Office", ValidityYears: 2}, log)
	return NewHandler(&Config{Timeout: 10 * time.Second}, issuer, nil, log), cs
}

// ==========================================
// Success
// ==========================================

func TestExecute_IssuesAndAnchors(t *testing.T) {
	h, cs := newTestHandler(t, ledger.NewMemory())

	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.NoError(t, err)

	assert.True(t, numbering.Valid(out.CertificateNo))
	assert.Equal(t, "VALID", out.Status)
	assert.Equal(t, "stu-1", out.HolderID)
	assert.True(t, out.Anchored)
	assert.NotEmpty(t, out.LedgerTxRef)
	assert.NotEmpty(t, out.ExpiryDate)

	data, err := cs.Get(context.Background(), out.ContentID)
	require.NoError(t, err)
	assert.Equal(t, content.Hash(data), out.FileHash)
}

func TestExecute_RetriedJobReturnsSameCertificate(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.False(t, first.Anchored)
	assert.Empty(t, first.LedgerTxRef)

	second, err := h.Execute(ctx, &Input{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.Equal(t, first.CertificateNo, second.CertificateNo)
}

func TestExecute_LedgerDownStillIssues(t *testing.T) {
	l := ledger.NewMemory()
	l.SetFailure(errors.New("node unreachable"))
	h, _ := newTestHandler(t, l)

	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.False(t, out.Anchored)
}

func TestExecute_PublishesIssuedMessage(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	pub := &recordingPublisher{err: errors.New("gateway unavailable")}
	h.publisher = pub

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.Equal(t, []published{{MessageCertificateIssued, "app-1"}}, pub.messages)

	_, err = h.Execute(context.Background(), &Input{ApplicationID: "app-2"})
	require.Error(t, err)
	assert.Len(t, pub.messages, 1)
}

// ==========================================
// Errors
// ==========================================

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		appID    string
		wantCode apperrors.ErrorCode
	}{
		{"missing id", "", apperrors.ErrCodeInvalidInput},
		{"unknown application", "nope", apperrors.ErrCodeNotFound},
		{"not approved", "app-2", apperrors.ErrCodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, nil)
			_, err := h.Execute(context.Background(), &Input{ApplicationID: tt.appID})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}
