package sendcertificatenotification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"certificate-workers/internal/certificate/notify"
	"certificate-workers/internal/certificate/store"
	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmail struct{ mock.Mock }

func (m *mockEmail) SendEmail(ctx context.Context, to, subject, text, html string) (string, error) {
	args := m.Called(ctx, to, subject, text, html)
	return args.String(0), args.Error(1)
}

func newTestHandler(t *testing.T, email *mockEmail) *Handler {
	t.Helper()
	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei", Email: "li.wei@example.edu"})

	log := logger.NewTestLogger(t)
	return NewHandler(&Config{Timeout: 5 * time.Second}, notify.NewNotifier(st, email, nil, log), log)
}

// ==========================================
// Delivery
// ==========================================

func TestExecute_Issued(t *testing.T) {
	email := new(mockEmail)
	email.On("SendEmail", mock.Anything, "li.wei@example.edu",
		"Your certificate CERT20240601120000123456000001 has been issued",
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, `"Excellent Graduate"`) && strings.Contains(body, "/api/verification/download/")
		}), mock.Anything).Return("msg-1", nil)

	h := newTestHandler(t, email)
	out, err := h.Execute(context.Background(), &Input{
		RecipientID:      "stu-1",
		NotificationType: "certificate_issued",
		CertificateNo:    "CERT20240601120000123456000001",
		Metadata: map[string]interface{}{
			"title":       "Excellent Graduate",
			"issueDate":   "2024-06-01",
			"downloadUrl": "/api/verification/download/CERT20240601120000123456000001",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, notify.StatusSent, out.Status)
	assert.Equal(t, notify.ChannelEmail, out.Channel)
	assert.NotEmpty(t, out.NotificationID)
	email.AssertExpectations(t)
}

func TestExecute_UnknownRecipientIsDisabled(t *testing.T) {
	h := newTestHandler(t, new(mockEmail))

	out, err := h.Execute(context.Background(), &Input{RecipientID: "ghost", NotificationType: "certificate_revoked"})
	require.NoError(t, err)
	assert.Equal(t, notify.StatusDisabled, out.Status)
}

// ==========================================
// Errors
// ==========================================

func TestExecute_Errors(t *testing.T) {
	failing := new(mockEmail)
	failing.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("throttled"))

	tests := []struct {
		name          string
		email         *mockEmail
		input         Input
		wantCode      apperrors.ErrorCode
		wantRetryable bool
	}{
		{"missing recipient", new(mockEmail), Input{NotificationType: "certificate_issued"}, apperrors.ErrCodeInvalidInput, false},
		{"unknown type", new(mockEmail), Input{RecipientID: "stu-1", NotificationType: "birthday"}, apperrors.ErrCodeInvalidInput, false},
		{"delivery failure", failing, Input{RecipientID: "stu-1", NotificationType: "application_decided", ApplicationID: "app-1"}, apperrors.ErrCodeNotificationFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.email)
			_, err := h.Execute(context.Background(), &tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Equal(t, tt.wantRetryable, apperrors.FromError(err).Retryable)
		})
	}
}
