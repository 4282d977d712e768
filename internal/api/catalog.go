// internal/api/catalog.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListBrands handles GET /api/brands
func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 50, 200)
	if err != nil {
		s.respondError(w, err)
		return
	}

	brands, err := s.repo.ListBrands(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "brands": brands})
}

// handleGetBrand handles GET /api/brands/{id}, including the brand's knowledge entries.
func (s *Server) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	brand, err := s.repo.GetBrand(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	knowledge, err := s.repo.BrandKnowledge(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"brand":     brand,
		"knowledge": knowledge,
	})
}

// handleListProducts handles GET /api/products?brand_id=
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 50, 200)
	if err != nil {
		s.respondError(w, err)
		return
	}

	products, err := s.repo.ListProducts(r.Context(), r.URL.Query().Get("brand_id"), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "products": products})
}

// handleGetProduct handles GET /api/products/{id}
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.repo.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "product": product})
}
