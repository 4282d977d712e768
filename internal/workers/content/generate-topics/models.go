// internal/workers/content/generate-topics/models.go
package generatetopics

import "content-workers/internal/generation"

// Input uses the same field names as POST /api/topics/generate so one schema validates both.
type Input struct {
	ProductID         string `json:"product_id"`
	ProductQuery      string `json:"product_query"`
	BrandID           string `json:"brand_id"`
	Prompt            string `json:"prompt"`
	Count             int    `json:"count"`
	UsePreviousTopics *bool  `json:"use_previous_topics"`
	MaxPreviousTopics *int   `json:"max_previous_topics"`
}

type Output struct {
	Topics     []generation.GeneratedItem `json:"topics"`
	TopicCount int                        `json:"topic_count"`
}
