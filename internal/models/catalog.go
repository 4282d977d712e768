// internal/models/catalog.go
package models

import (
	"encoding/json"
	"time"
)

type Brand struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Website     string    `json:"website,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product features are stored as JSONB and kept raw; the assembler decides how to read them.
type Product struct {
	ID          string          `json:"id"`
	BrandID     string          `json:"brand_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Features    json.RawMessage `json:"features,omitempty"`
	Category    string          `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BrandKnowledge is free-form reference material attached to a brand (tone, positioning, FAQs).
type BrandKnowledge struct {
	ID        string    `json:"id"`
	BrandID   string    `json:"brand_id"`
	Title     string    `json:"title"`
	Body      string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
