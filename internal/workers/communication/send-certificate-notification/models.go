// internal/workers/communication/send-certificate-notification/models.go
package sendcertificatenotification

type Input struct {
	RecipientID      string                 `json:"recipientId"`
	NotificationType string                 `json:"notificationType"` // certificate_issued, certificate_revoked, application_decided
	CertificateNo    string                 `json:"certificateNo,omitempty"`
	ApplicationID    string                 `json:"applicationId,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	Channel        string `json:"channel,omitempty"`
	SentAt         string `json:"sentAt"` // ISO 8601
}
