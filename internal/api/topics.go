// internal/api/topics.go
package api

import (
	"net/http"
	"strconv"

	"content-workers/internal/common/errors"
	"content-workers/internal/generation"
	"content-workers/internal/models"
	"content-workers/internal/store"

	"github.com/go-chi/chi/v5"
)

type topicRequestBody struct {
	ProductID         string `json:"product_id"`
	ProductQuery      string `json:"product_query"`
	BrandID           string `json:"brand_id"`
	Prompt            string `json:"prompt"`
	Count             int    `json:"count"`
	UsePreviousTopics *bool  `json:"use_previous_topics"`
	MaxPreviousTopics *int   `json:"max_previous_topics"`
	SaveToDB          *bool  `json:"save_to_db"`
}

func (b topicRequestBody) toRequest(defaultCount int) generation.TopicRequest {
	count := b.Count
	if count == 0 {
		count = defaultCount
	}
	return generation.TopicRequest{
		ProductID:         b.ProductID,
		ProductQuery:      b.ProductQuery,
		BrandID:           b.BrandID,
		Prompt:            b.Prompt,
		Count:             count,
		UsePreviousTopics: b.UsePreviousTopics,
		MaxPreviousTopics: b.MaxPreviousTopics,
	}
}

type approveRequestBody struct {
	Topics   []generation.GeneratedItem `json:"topics"`
	SaveToDB *bool                      `json:"save_to_db"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// handleGenerateTopics handles POST /api/topics/generate
func (s *Server) handleGenerateTopics(w http.ResponseWriter, r *http.Request) {
	var body topicRequestBody
	if err := s.decode(w, r, "generate-topics", &body); err != nil {
		s.respondError(w, err)
		return
	}
	if body.ProductID == "" && body.ProductQuery == "" {
		s.respondError(w, errors.NewInputError("either product_id or product_query must be provided"))
		return
	}

	s.respondResult(w, s.pipeline.GenerateTopics(r.Context(), body.toRequest(1)))
}

// handleGenerateMultiple handles POST /api/topics/generate-multiple. Results are always saved for review.
func (s *Server) handleGenerateMultiple(w http.ResponseWriter, r *http.Request) {
	var body topicRequestBody
	if err := s.decode(w, r, "generate-multiple-topics", &body); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondResult(w, s.pipeline.GenerateBrandProductTopics(r.Context(), body.toRequest(5), true))
}

// handleBrandProductTopics handles POST /api/brand-product/topics
func (s *Server) handleBrandProductTopics(w http.ResponseWriter, r *http.Request) {
	var body topicRequestBody
	if err := s.decode(w, r, "brand-product-topics", &body); err != nil {
		s.respondError(w, err)
		return
	}

	req := body.toRequest(3)
	if req.UsePreviousTopics == nil {
		usePrevious := false
		req.UsePreviousTopics = &usePrevious
	}
	s.respondResult(w, s.pipeline.GenerateBrandProductTopics(r.Context(), req, boolOr(body.SaveToDB, true)))
}

// handleApproveTopics handles POST /api/topics/approve
func (s *Server) handleApproveTopics(w http.ResponseWriter, r *http.Request) {
	var body approveRequestBody
	if err := s.decode(w, r, "approve-topics", &body); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondResult(w, s.pipeline.ApproveTopics(r.Context(), body.Topics, boolOr(body.SaveToDB, true)))
}

// handleListTopics handles GET /api/topics
func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 10, 50)
	if err != nil {
		s.respondError(w, err)
		return
	}

	q := r.URL.Query()
	topics, err := s.repo.ListTopics(r.Context(), store.TopicFilter{
		ProductID: q.Get("product_id"),
		BrandID:   q.Get("brand_id"),
		Status:    models.TopicStatus(q.Get("status")),
		Limit:     limit,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "topics": topics})
}

// handleGetTopic handles GET /api/topics/{id}
func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.repo.GetTopic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "topic": topic})
}

// handleSetTopicStatus handles POST /api/topics/{id}/approve and /reject
func (s *Server) handleSetTopicStatus(status models.TopicStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic, err := s.repo.SetTopicStatus(r.Context(), chi.URLParam(r, "id"), status)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "topic": topic})
	}
}

// parseLimit reads ?limit=, which must lie in [1, max].
func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, errors.NewInputError("limit must be an integer between 1 and " + strconv.Itoa(max))
	}
	return n, nil
}
