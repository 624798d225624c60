package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

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

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, phone, message string) (string, error) {
	args := m.Called(ctx, phone, message)
	return args.String(0), args.Error(1)
}

func directory() *store.Memory {
	st := store.NewMemory()
	st.PutUser(models.User{ID: "stu-1", RealName: "Li Wei", Email: "li.wei@example.edu", Phone: "+86 138 0000 0000"})
	st.PutUser(models.User{ID: "stu-2", RealName: "Zhang San"})
	return st
}

func issuedMessage(recipient string) Message {
	return Message{
		Event:       models.EventCertificateIssued,
		RecipientID: recipient,
		Data: map[string]interface{}{
			"certificateNo": "CERT20240601120000123456000001",
			"title":         "Excellent Graduate",
			"issueDate":     "2024-06-01",
		},
	}
}

func TestNotify_EmailAndSMS(t *testing.T) {
	email, sms := new(mockEmail), new(mockSMS)
	email.On("SendEmail", mock.Anything, "li.wei@example.edu",
		"Your certificate CERT20240601120000123456000001 has been issued",
		mock.MatchedBy(func(body string) bool {
			return strings.HasPrefix(body, "Dear Li Wei,") && !strings.Contains(body, "{{")
		}), mock.Anything).Return("m-1", nil)
	sms.On("SendSMS", mock.Anything, "+86 138 0000 0000", mock.Anything).Return("s-1", nil)

	n := NewNotifier(directory(), email, sms, logger.NewTestLogger(t))
	out, err := n.Notify(context.Background(), issuedMessage("stu-1"))
	require.NoError(t, err)

	assert.Equal(t, StatusSent, out.Status)
	assert.Equal(t, "email,sms", out.Channel)
	assert.NotEmpty(t, out.ID)
	email.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestNotify_Disabled(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		email     EmailSender
	}{
		{"unknown recipient", "ghost", new(mockEmail)},
		{"no contact details", "stu-2", new(mockEmail)},
		{"no channels configured", "stu-1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotifier(directory(), tt.email, nil, logger.NewNoOpLogger())
			out, err := n.Notify(context.Background(), issuedMessage(tt.recipient))
			require.NoError(t, err)
			assert.Equal(t, StatusDisabled, out.Status)
		})
	}
}

func TestNotify_DeliveryFailure(t *testing.T) {
	email := new(mockEmail)
	email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("throttled"))

	n := NewNotifier(directory(), email, nil, logger.NewNoOpLogger())
	out, err := n.Notify(context.Background(), Message{
		Event:       models.EventCertificateRevoked,
		RecipientID: "stu-1",
		Data:        map[string]interface{}{"certificateNo": "CERT1", "reason": "fraud"},
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.FromError(err).Retryable)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ChannelEmail, out.Channel)
}

func TestNotify_UnknownEvent(t *testing.T) {
	n := NewNotifier(directory(), nil, nil, logger.NewNoOpLogger())
	_, err := n.Notify(context.Background(), Message{Event: "party", RecipientID: "stu-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRenderTemplate(t *testing.T) {
	got := renderTemplate("{{a}} and {{b}} but not {{missing}}.", map[string]interface{}{"a": "x", "b": 2})
	assert.Equal(t, "x and 2 but not .", got)
}
