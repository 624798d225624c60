// Package notify tells certificate holders about issuance and revocation by email and SMS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/validation"
	"certificate-workers/internal/models"

	"github.com/google/uuid"
)

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"

	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, text, html string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// Directory resolves holder contact details.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Message is one event addressed to a user. Data fills {{placeholders}} in the template.
type Message struct {
	Event       models.NotificationEvent
	RecipientID string
	Data        map[string]interface{}
}

type template struct {
	subject string
	body    string
}

var templates = map[models.NotificationEvent]template{
	models.EventCertificateIssued: {
		subject: "Your certificate {{certificateNo}} has been issued",
		body:    "Dear {{realName}}, your certificate \"{{title}}\" ({{certificateNo}}) was issued on {{issueDate}}. Verify it at {{downloadUrl}}.",
	},
	models.EventCertificateRevoked: {
		subject: "Certificate {{certificateNo}} has been revoked",
		body:    "Dear {{realName}}, your certificate {{certificateNo}} was revoked. Reason: {{reason}}.",
	},
	models.EventApplicationDecided: {
		subject: "Update on application {{applicationId}}",
		body:    "Dear {{realName}}, your application {{applicationId}} is now {{status}}.",
	},
}

// Notifier sends over whichever channels are configured. A nil sender disables its channel.
type Notifier struct {
	users  Directory
	email  EmailSender
	sms    SMSSender
	now    func() time.Time
	logger logger.Logger
}

func NewNotifier(users Directory, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	return &Notifier{
		users:  users,
		email:  email,
		sms:    sms,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// Notify renders the event template and delivers it. An unknown recipient or an absent contact
// yields status "disabled". A delivery failure yields status "failed" and a retryable error.
func (n *Notifier) Notify(ctx context.Context, msg Message) (*models.Notification, error) {
	tmpl, ok := templates[msg.Event]
	if !ok {
		return nil, fmt.Errorf("%w: unknown notification event %q", apperrors.ErrInvalidInput, msg.Event)
	}

	out := &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: msg.RecipientID,
		Event:       msg.Event,
		Status:      StatusDisabled,
		Payload:     msg.Data,
		SentAt:      n.now().Format(time.RFC3339),
	}

	user, err := n.users.GetUser(ctx, msg.RecipientID)
	if errors.Is(err, apperrors.ErrNotFound) {
		n.logger.Warn("recipient not found", map[string]interface{}{"recipientId": msg.RecipientID})
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{"realName": user.RealName}
	for k, v := range msg.Data {
		data[k] = v
	}
	subject := renderTemplate(tmpl.subject, data)
	body := renderTemplate(tmpl.body, data)

	var channels []string
	if n.email != nil && validation.ValidateEmail(user.Email) {
		if _, err := n.email.SendEmail(ctx, user.Email, subject, body, "<p>"+body+"</p>"); err != nil {
			return n.failed(out, ChannelEmail, err)
		}
		channels = append(channels, ChannelEmail)
	}
	if n.sms != nil && validation.ValidatePhone(user.Phone) {
		if _, err := n.sms.SendSMS(ctx, user.Phone, body); err != nil {
			return n.failed(out, ChannelSMS, err)
		}
		channels = append(channels, ChannelSMS)
	}

	if len(channels) > 0 {
		out.Status = StatusSent
		out.Channel = strings.Join(channels, ",")
	}
	n.logger.Info("notification processed", map[string]interface{}{
		"recipientId": msg.RecipientID,
		"event":       msg.Event,
		"status":      out.Status,
		"channel":     out.Channel,
	})
	return out, nil
}

func (n *Notifier) failed(out *models.Notification, channel string, err error) (*models.Notification, error) {
	n.logger.Error("notification delivery failed", map[string]interface{}{
		"recipientId": out.RecipientID,
		"channel":     channel,
		"error":       err,
	})
	out.Status = StatusFailed
	out.Channel = channel
	return out, apperrors.NewNotificationSendFailedError(channel, err)
}

// renderTemplate substitutes {{key}} placeholders and drops any left without a value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
