// internal/models/notification.go
package models

type NotificationEvent string

const (
	EventTopicsApproved   NotificationEvent = "topics_approved"
	EventContentGenerated NotificationEvent = "content_generated"
)

// Notification records one delivery attempt of an event on a channel.
type Notification struct {
	Event     NotificationEvent      `json:"event"`
	Channel   string                 `json:"channel"` // "sns", "email"
	Status    string                 `json:"status"`  // "sent", "failed", "disabled"
	MessageID string                 `json:"messageId,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}
