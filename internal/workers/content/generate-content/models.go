// internal/workers/content/generate-content/models.go
package generatecontent

type Input struct {
	TopicID     string `json:"topic_id"`
	TopicTitle  string `json:"topic_title"`
	WithRelated *bool  `json:"with_related"`
}

type Output struct {
	ContentID        string `json:"content_id"`
	ContentTitle     string `json:"content_title"`
	Content          string `json:"content,omitempty"`
	PersistenceError string `json:"persistence_error,omitempty"`
}
