// internal/models/content.go
package models

import "time"

type Content struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"content"`
	TopicID     string    `json:"topic_id,omitempty"`
	ImageBase64 string    `json:"image_base64,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
