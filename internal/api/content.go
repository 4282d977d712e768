// internal/api/content.go
package api

import (
	"net/http"

	"content-workers/internal/generation"
	"content-workers/internal/store"

	"github.com/go-chi/chi/v5"
)

type contentRequestBody struct {
	TopicID     string `json:"topic_id"`
	TopicTitle  string `json:"topic_title"`
	WithRelated *bool  `json:"with_related"`
}

type imageRequestBody struct {
	Style string `json:"style"`
}

// handleGenerateContent handles POST /api/content/generate
func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var body contentRequestBody
	if err := s.decode(w, r, "generate-content", &body); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondContent(w, s.pipeline.GenerateContent(r.Context(), generation.ContentRequest{
		TopicID:     body.TopicID,
		TopicTitle:  body.TopicTitle,
		WithRelated: body.WithRelated,
	}))
}

// handleListContent handles GET /api/content. With content_id it returns that one item.
func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if id := q.Get("content_id"); id != "" {
		c, err := s.repo.GetContent(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "content": c})
		return
	}

	limit, err := parseLimit(r, 10, 50)
	if err != nil {
		s.respondError(w, err)
		return
	}

	items, err := s.repo.ListContent(r.Context(), store.ContentFilter{TopicID: q.Get("topic_id"), Limit: limit})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "content": items})
}

// handleIllustrateContent handles POST /api/content/{id}/image
func (s *Server) handleIllustrateContent(w http.ResponseWriter, r *http.Request) {
	var body imageRequestBody
	if err := s.decode(w, r, "illustrate-content", &body); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondContent(w, s.pipeline.IllustrateContent(r.Context(), chi.URLParam(r, "id"), body.Style))
}
