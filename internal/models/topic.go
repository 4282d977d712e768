// internal/models/topic.go
package models

import (
	"strings"
	"time"
)

type TopicStatus string

const (
	TopicStatusDraft     TopicStatus = "draft"
	TopicStatusPending   TopicStatus = "pending"
	TopicStatusComplete  TopicStatus = "complete"
	TopicStatusApproved  TopicStatus = "approved"
	TopicStatusRejected  TopicStatus = "rejected"
	TopicStatusPublished TopicStatus = "published"
)

// IsApprovable reports whether a reviewed topic may be saved by an approval.
func (s TopicStatus) IsApprovable() bool {
	return s == TopicStatusComplete || s == TopicStatusApproved
}

// Categories is the closed set a generated topic may be labelled with.
var Categories = []string{
	"Product Updates",
	"Industry News",
	"Customer Stories",
	"Tips & Tricks",
	"Behind the Scenes",
	"Company Culture",
	"Educational Content",
	"Product Features",
}

// NormalizeCategory maps label case-insensitively onto Categories. Unknown labels yield "".
func NormalizeCategory(label string) string {
	label = strings.TrimSpace(label)
	for _, c := range Categories {
		if strings.EqualFold(c, label) {
			return c
		}
	}
	return ""
}

// Topic is a persisted topic row.
type Topic struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	ProductID      string      `json:"product_id,omitempty"`
	BrandID        string      `json:"brand_id,omitempty"`
	Keywords       []string    `json:"seo_keywords"`
	RelevanceScore float64     `json:"relevance_score"`
	TargetAudience string      `json:"target_audience"`
	Category       string      `json:"category"`
	Prompt         string      `json:"prompt,omitempty"`
	Status         TopicStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
