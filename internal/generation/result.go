// internal/generation/result.go
package generation

import (
	"encoding/json"
	"time"

	"content-workers/internal/common/errors"
	"content-workers/internal/models"
)

// TopicRequest is the input of every topic generation operation. Nil pointers take the operation's default.
type TopicRequest struct {
	ProductID         string `json:"product_id,omitempty"`
	ProductQuery      string `json:"product_query,omitempty"`
	BrandID           string `json:"brand_id,omitempty"`
	Prompt            string `json:"prompt,omitempty"`
	Count             int    `json:"count,omitempty"`
	UsePreviousTopics *bool  `json:"use_previous_topics,omitempty"`
	MaxPreviousTopics *int   `json:"max_previous_topics,omitempty"`
}

// ContentRequest selects the topic an article is written for.
type ContentRequest struct {
	TopicID     string `json:"topic_id,omitempty"`
	TopicTitle  string `json:"topic_title,omitempty"`
	WithRelated *bool  `json:"with_related,omitempty"`
}

// GeneratedItem is one topic produced by the model, before or after persistence.
type GeneratedItem struct {
	ID             string             `json:"id,omitempty"`
	Title          string             `json:"title"`
	RelevanceScore float64            `json:"relevance_score"`
	SEOKeywords    []string           `json:"seo_keywords"`
	TargetAudience string             `json:"target_audience"`
	Category       string             `json:"category"`
	ProductID      string             `json:"product_id,omitempty"`
	BrandID        string             `json:"brand_id,omitempty"`
	Prompt         string             `json:"prompt,omitempty"`
	Status         models.TopicStatus `json:"status"`
	CreatedAt      *time.Time         `json:"created_at,omitempty"`
}

// UnmarshalJSON applies the same lenient coercion as the recovery parser, so reviewed items posted back
// for approval may carry string scores or missing keyword lists.
func (g *GeneratedItem) UnmarshalJSON(b []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	*g = itemFromMap(m)
	g.ID = stringField(m, "id")
	g.ProductID = stringField(m, "product_id")
	g.BrandID = stringField(m, "brand_id")
	g.Prompt = stringField(m, "prompt")
	g.Status = models.TopicStatus(stringField(m, "status"))
	if ts := stringField(m, "created_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			g.CreatedAt = &t
		}
	}
	return nil
}

func (g GeneratedItem) toTopic(status models.TopicStatus) models.Topic {
	return models.Topic{
		Title:          g.Title,
		ProductID:      g.ProductID,
		BrandID:        g.BrandID,
		Keywords:       g.SEOKeywords,
		RelevanceScore: g.RelevanceScore,
		TargetAudience: g.TargetAudience,
		Category:       g.Category,
		Prompt:         g.Prompt,
		Status:         status,
	}
}

// withSaved copies the persisted identity onto the generated item.
func (g GeneratedItem) withSaved(t models.Topic) GeneratedItem {
	g.ID = t.ID
	g.Status = t.Status
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		g.CreatedAt = &created
	}
	return g
}

// ItemFromTopic renders a stored topic in the generated-item shape.
func ItemFromTopic(t models.Topic) GeneratedItem {
	keywords := t.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	g := GeneratedItem{
		Title:          t.Title,
		RelevanceScore: t.RelevanceScore,
		SEOKeywords:    keywords,
		TargetAudience: t.TargetAudience,
		Category:       t.Category,
		ProductID:      t.ProductID,
		BrandID:        t.BrandID,
		Prompt:         t.Prompt,
	}
	return g.withSaved(t)
}

// Result is the outcome of a topic operation. Success and Error are never both set.
type Result struct {
	Success          bool            `json:"success"`
	Topic            *GeneratedItem  `json:"topic,omitempty"`
	Topics           []GeneratedItem `json:"topics"`
	Skipped          int             `json:"skipped,omitempty"`
	Error            string          `json:"error,omitempty"`
	RawContent       string          `json:"raw_content,omitempty"`
	PersistenceError string          `json:"persistence_error,omitempty"`

	Err *errors.StandardError `json:"-"`
}

func okResult(items []GeneratedItem) Result {
	if items == nil {
		items = []GeneratedItem{}
	}
	return Result{Success: true, Topics: items}
}

func failResult(err error, raw string) Result {
	stdErr := errors.Normalize(err)
	return Result{Error: stdErr.Message, RawContent: raw, Err: stdErr}
}

// ContentResult is the outcome of a content operation.
type ContentResult struct {
	Success          bool            `json:"success"`
	Content          *models.Content `json:"content,omitempty"`
	Error            string          `json:"error,omitempty"`
	PersistenceError string          `json:"persistence_error,omitempty"`

	Err *errors.StandardError `json:"-"`
}

func failContent(err error) ContentResult {
	stdErr := errors.Normalize(err)
	return ContentResult{Error: stdErr.Message, Err: stdErr}
}

// Code is the outcome label used in metrics.
func (r Result) Code() string {
	if r.Err != nil {
		return string(r.Err.Code)
	}
	return "ok"
}

func (r ContentResult) Code() string {
	if r.Err != nil {
		return string(r.Err.Code)
	}
	return "ok"
}
