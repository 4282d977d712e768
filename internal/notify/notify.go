// internal/notify/notify.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"content-workers/internal/common/config"
	"content-workers/internal/common/errors"
	"content-workers/internal/common/logger"
	"content-workers/internal/models"
)

const (
	ChannelSNS   = "sns"
	ChannelEmail = "email"

	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, topicARN, event, subject, message string) (string, error)
}

type EmailSender interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

// Notifier fans pipeline events out to SNS and email. A nil publisher or sender disables that channel.
type Notifier struct {
	publisher EventPublisher
	email     EmailSender
	cfg       config.NotificationConfig
	log       logger.Logger
}

func New(cfg config.NotificationConfig, publisher EventPublisher, email EmailSender, log logger.Logger) *Notifier {
	if !cfg.SNS.Enabled {
		publisher = nil
	}
	if !cfg.Email.Enabled || len(cfg.Email.Recipients) == 0 {
		email = nil
	}
	return &Notifier{
		publisher: publisher,
		email:     email,
		cfg:       cfg,
		log:       log.With(map[string]interface{}{"component": "notify"}),
	}
}

// TopicsApproved announces a batch of approved topics.
func (n *Notifier) TopicsApproved(ctx context.Context, topics []models.Topic) error {
	items := make([]map[string]interface{}, len(topics))
	lines := make([]string, len(topics))
	for i, t := range topics {
		items[i] = map[string]interface{}{"id": t.ID, "title": t.Title, "product_id": t.ProductID, "category": t.Category}
		lines[i] = fmt.Sprintf("- %s (%s)", t.Title, t.ID)
	}

	subject := fmt.Sprintf("%d topic(s) approved", len(topics))
	body := "The following topics were approved and are ready for writing:\n\n" + strings.Join(lines, "\n")
	_, err := n.Deliver(ctx, models.EventTopicsApproved, subject, body, map[string]interface{}{
		"count":  len(topics),
		"topics": items,
	})
	return err
}

// ContentGenerated announces a new article.
func (n *Notifier) ContentGenerated(ctx context.Context, c models.Content) error {
	subject := "New article: " + c.Title
	body := fmt.Sprintf("A new article was generated.\n\nTitle: %s\nContent ID: %s\n", c.Title, c.ID)
	_, err := n.Deliver(ctx, models.EventContentGenerated, subject, body, map[string]interface{}{
		"content_id": c.ID,
		"topic_id":   c.TopicID,
		"title":      c.Title,
	})
	return err
}

// Deliver sends one event on every enabled channel. Every channel is attempted; the first failure is returned.
func (n *Notifier) Deliver(ctx context.Context, event models.NotificationEvent, subject, body string, payload map[string]interface{}) ([]models.Notification, error) {
	payload["event"] = string(event)
	var firstErr error
	var out []models.Notification

	record := func(channel, messageID string, err error) {
		note := models.Notification{Event: event, Channel: channel, Status: StatusSent, MessageID: messageID, Payload: payload}
		if err != nil {
			note.Status = StatusFailed
			if firstErr == nil {
				firstErr = errors.NewNotificationSendFailedError(channel, err)
			}
			n.log.Error("notification send failed", map[string]interface{}{"channel": channel, "event": string(event), "error": err})
		}
		out = append(out, note)
	}

	if n.publisher != nil {
		message, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		id, err := n.publisher.PublishEvent(ctx, n.cfg.SNS.TopicARN, string(event), truncateSubject(subject), string(message))
		record(ChannelSNS, id, err)
	}

	if n.email != nil {
		id, err := n.email.SendText(ctx, n.cfg.Email.FromEmail, n.cfg.Email.Recipients, subject, body)
		record(ChannelEmail, id, err)
	}

	if len(out) == 0 {
		out = append(out, models.Notification{Event: event, Status: StatusDisabled, Payload: payload})
	}
	return out, firstErr
}

// SNS rejects subjects over 100 characters.
func truncateSubject(s string) string {
	r := []rune(s)
	if len(r) <= 100 {
		return s
	}
	return string(r[:97]) + "..."
}
