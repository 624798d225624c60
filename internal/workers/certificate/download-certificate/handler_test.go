package downloadcertificate

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/issuance"
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

type fixture struct {
	store   *store.Memory
	content *content.MemoryStore
	engine  *verification.Engine
	cert    *models.Certificate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei"})
	st.PutApplication(models.Application{ID: "app-1", ApplicantID: "stu-1", Title: "Scholarship", Status: models.StatusApproved})

	cs := content.NewMemoryStore()
	issuer := issuance.NewIssuer(st, cs, nil, render.NewPDFRenderer(), numbering.NewGenerator(nil, log),
		issuance.Options{IssuerName: "Registrar"}, log)
	cert, err := issuer.Issue(context.Background(), "app-1")
	require.NoError(t, err)

	return &fixture{
		store:   st,
		content: cs,
		engine:  verification.NewEngine(st, cs, nil, nil, verification.Options{DownloadBasePath: "https://certs.example.edu/download"}, log),
		cert:    cert,
	}
}

func TestExecute_Reference(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(LoadConfig(), f.engine, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{CertificateNo: f.cert.CertificateNo})
	require.NoError(t, err)
	assert.Equal(t, f.cert.CertificateNo+".pdf", out.FileName)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.Equal(t, f.cert.FileHash, out.FileHash)
	assert.Equal(t, "https://certs.example.edu/download/"+f.cert.CertificateNo, out.DownloadURL)
	assert.Empty(t, out.ContentBase64)
}

func TestExecute_Inline(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(LoadConfig(), f.engine, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{CertificateNo: f.cert.CertificateNo, Inline: true})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(out.ContentBase64)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
	assert.Equal(t, out.Size, len(raw))
}

func TestExecute_InlineTooLarge(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(&Config{Timeout: time.Second, MaxInlineBytes: 16}, f.engine, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{CertificateNo: f.cert.CertificateNo, Inline: true})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode("BUSINESS_RULE_VIOLATION"), apperrors.CodeOf(err))
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(t *testing.T, f *fixture) string
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "missing number",
			prepare:  func(*testing.T, *fixture) string { return "" },
			wantCode: apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "unknown certificate",
			prepare:  func(*testing.T, *fixture) string { return "CERT20240601120000123456999999" },
			wantCode: apperrors.ErrCodeNotFound,
		},
		{
			name: "revoked",
			prepare: func(t *testing.T, f *fixture) string {
				_, err := f.store.RevokeCertificate(context.Background(), f.cert.ID, "fraud", time.Now())
				require.NoError(t, err)
				return f.cert.CertificateNo
			},
			wantCode: apperrors.ErrCodeRevoked,
		},
		{
			name: "tampered artifact",
			prepare: func(t *testing.T, f *fixture) string {
				f.content.Overwrite(f.cert.ContentID, []byte("%PDF-1.4 forged"))
				return f.cert.CertificateNo
			},
			wantCode: apperrors.ErrCodeIntegrityFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			h := NewHandler(LoadConfig(), f.engine, logger.NewNoOpLogger())
			_, err := h.Execute(context.Background(), &Input{CertificateNo: tt.prepare(t, f)})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}
