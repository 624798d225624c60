// internal/models/notification.go
package models

type NotificationEvent string

const (
	EventCertificateIssued  NotificationEvent = "certificate_issued"
	EventCertificateRevoked NotificationEvent = "certificate_revoked"
	EventApplicationDecided NotificationEvent = "application_decided"
)

type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipientId"`
	Event       NotificationEvent      `json:"event"`
	Channel     string                 `json:"channel"` // "email", "sms"
	Status      string                 `json:"status"`  // "sent", "failed", "disabled"
	Payload     map[string]interface{} `json:"payload"`
	SentAt      string                 `json:"sentAt"`
}
