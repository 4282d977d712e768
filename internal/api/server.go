// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"content-workers/internal/common/config"
	"content-workers/internal/common/logger"
	"content-workers/internal/common/metrics"
	"content-workers/internal/common/validation"
	"content-workers/internal/generation"
	"content-workers/internal/models"
	"content-workers/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline is the generation service as seen by the API.
type Pipeline interface {
	GenerateTopics(ctx context.Context, req generation.TopicRequest) generation.Result
	GenerateBrandProductTopics(ctx context.Context, req generation.TopicRequest, saveToDB bool) generation.Result
	ApproveTopics(ctx context.Context, items []generation.GeneratedItem, saveToDB bool) generation.Result
	GenerateContent(ctx context.Context, req generation.ContentRequest) generation.ContentResult
	IllustrateContent(ctx context.Context, contentID, style string) generation.ContentResult
}

// Repository is the read and review side backed by the store.
type Repository interface {
	GetTopic(ctx context.Context, id string) (*models.Topic, error)
	ListTopics(ctx context.Context, f store.TopicFilter) ([]models.Topic, error)
	SetTopicStatus(ctx context.Context, id string, status models.TopicStatus) (*models.Topic, error)
	GetContent(ctx context.Context, id string) (*models.Content, error)
	ListContent(ctx context.Context, f store.ContentFilter) ([]models.Content, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	ListBrands(ctx context.Context, limit int) ([]models.Brand, error)
	BrandKnowledge(ctx context.Context, brandID string) ([]models.BrandKnowledge, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, brandID string, limit int) ([]models.Product, error)
}

// Check is a named readiness probe.
type Check func(ctx context.Context) error

type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	pipeline   Pipeline
	repo       Repository
	validator  *validation.Validator
	checks     map[string]Check
	cfg        config.HTTPConfig
	log        logger.Logger
}

func New(cfg config.HTTPConfig, pipeline Pipeline, repo Repository, validator *validation.Validator, checks map[string]Check, log logger.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		pipeline:  pipeline,
		repo:      repo,
		validator: validator,
		checks:    checks,
		cfg:       cfg,
		log:       log.With(map[string]interface{}{"component": "api"}),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(config.GetDuration(s.cfg.RequestTimeout)))
	}

	if s.cfg.CORSEnabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/topics", func(r chi.Router) {
			r.Get("/", s.handleListTopics)
			r.Post("/generate", s.handleGenerateTopics)
			r.Post("/generate-multiple", s.handleGenerateMultiple)
			r.Post("/approve", s.handleApproveTopics)
			r.Get("/{id}", s.handleGetTopic)
			r.Post("/{id}/approve", s.handleSetTopicStatus(models.TopicStatusApproved))
			r.Post("/{id}/reject", s.handleSetTopicStatus(models.TopicStatusRejected))
		})

		r.Post("/brand-product/topics", s.handleBrandProductTopics)

		r.Route("/content", func(r chi.Router) {
			r.Get("/", s.handleListContent)
			r.Post("/generate", s.handleGenerateContent)
			r.Post("/{id}/image", s.handleIllustrateContent)
		})

		r.Route("/brands", func(r chi.Router) {
			r.Get("/", s.handleListBrands)
			r.Get("/{id}", s.handleGetBrand)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Get("/{id}", s.handleGetProduct)
		})
	})
}

// requestLogger logs every request with its route pattern and counts it.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

		fields := map[string]interface{}{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		}
		if status >= 500 {
			s.log.Error("request failed", fields)
		} else {
			s.log.Info("request handled", fields)
		}
	})
}

func (s *Server) Start() error {
	s.log.Info("starting HTTP server", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server", nil)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the chi router (useful for testing).
func (s *Server) Router() *chi.Mux {
	return s.router
}
