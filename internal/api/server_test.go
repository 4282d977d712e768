package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"content-workers/internal/common/config"
	"content-workers/internal/common/errors"
	"content-workers/internal/common/logger"
	"content-workers/internal/common/validation"
	"content-workers/internal/generation"
	"content-workers/internal/models"
	"content-workers/internal/store"
	"content-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) GenerateTopics(ctx context.Context, req generation.TopicRequest) generation.Result {
	return m.Called(ctx, req).Get(0).(generation.Result)
}

func (m *MockPipeline) GenerateBrandProductTopics(ctx context.Context, req generation.TopicRequest, saveToDB bool) generation.Result {
	return m.Called(ctx, req, saveToDB).Get(0).(generation.Result)
}

func (m *MockPipeline) ApproveTopics(ctx context.Context, items []generation.GeneratedItem, saveToDB bool) generation.Result {
	return m.Called(ctx, items, saveToDB).Get(0).(generation.Result)
}

func (m *MockPipeline) GenerateContent(ctx context.Context, req generation.ContentRequest) generation.ContentResult {
	return m.Called(ctx, req).Get(0).(generation.ContentResult)
}

func (m *MockPipeline) IllustrateContent(ctx context.Context, contentID, style string) generation.ContentResult {
	return m.Called(ctx, contentID, style).Get(0).(generation.ContentResult)
}

type fakeRepo struct {
	topics      map[string]models.Topic
	content     map[string]models.Content
	lastFilter  store.TopicFilter
	lastContent store.ContentFilter
}

func (f *fakeRepo) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	t, ok := f.topics[id]
	if !ok {
		return nil, errors.NewResourceNotFoundError("topic", id)
	}
	return &t, nil
}

func (f *fakeRepo) ListTopics(ctx context.Context, filter store.TopicFilter) ([]models.Topic, error) {
	f.lastFilter = filter
	return []models.Topic{}, nil
}

func (f *fakeRepo) SetTopicStatus(ctx context.Context, id string, status models.TopicStatus) (*models.Topic, error) {
	t, ok := f.topics[id]
	if !ok {
		return nil, errors.NewResourceNotFoundError("topic", id)
	}
	t.Status = status
	return &t, nil
}

func (f *fakeRepo) GetContent(ctx context.Context, id string) (*models.Content, error) {
	c, ok := f.content[id]
	if !ok {
		return nil, errors.NewResourceNotFoundError("content", id)
	}
	return &c, nil
}

func (f *fakeRepo) ListContent(ctx context.Context, filter store.ContentFilter) ([]models.Content, error) {
	f.lastContent = filter
	return []models.Content{}, nil
}

func (f *fakeRepo) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	return &models.Brand{ID: id, Name: "Acme"}, nil
}

func (f *fakeRepo) ListBrands(ctx context.Context, limit int) ([]models.Brand, error) {
	return []models.Brand{{ID: "b1", Name: "Acme"}}, nil
}

func (f *fakeRepo) BrandKnowledge(ctx context.Context, brandID string) ([]models.BrandKnowledge, error) {
	return []models.BrandKnowledge{{ID: "k1", BrandID: brandID, Title: "Tone"}}, nil
}

func (f *fakeRepo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return nil, errors.NewQueryExecutionFailedError("get_product", stderrors.New("connection reset"))
}

func (f *fakeRepo) ListProducts(ctx context.Context, brandID string, limit int) ([]models.Product, error) {
	return []models.Product{}, nil
}

// ==========================
// Test Helpers
// ==========================

func newTestServer(t *testing.T, checks map[string]Check) (*Server, *MockPipeline, *fakeRepo) {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	v, err := validation.NewValidator(reg)
	require.NoError(t, err)

	p := &MockPipeline{}
	repo := &fakeRepo{
		topics:  map[string]models.Topic{"t1": {ID: "t1", Title: "Descaling 101", Status: models.TopicStatusPending}},
		content: map[string]models.Content{"c1": {ID: "c1", Title: "Winter tea"}},
	}
	s := New(config.HTTPConfig{Port: 8080}, p, repo, v, checks, logger.NewTestLogger(t))
	return s, p, repo
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func okTopics(titles ...string) generation.Result {
	items := make([]generation.GeneratedItem, len(titles))
	for i, title := range titles {
		items[i] = generation.GeneratedItem{Title: title, SEOKeywords: []string{}, Status: models.TopicStatusDraft}
	}
	return generation.Result{Success: true, Topics: items}
}

// ==========================
// Topic generation
// ==========================

func TestGenerateTopics_Success(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	p.On("GenerateTopics", mock.Anything, mock.MatchedBy(func(r generation.TopicRequest) bool {
		return r.ProductID == "p1" && r.Count == 1 && r.UsePreviousTopics == nil
	})).Return(okTopics("Five kettle myths"))

	rec, body := do(t, s, http.MethodPost, "/api/topics/generate", `{"product_id":"p1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	topics := body["topics"].([]interface{})
	require.Len(t, topics, 1)
	assert.Equal(t, "Five kettle myths", topics[0].(map[string]interface{})["title"])
	p.AssertExpectations(t)
}

func TestGenerateTopics_RequestErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{name: "no subject", body: `{"prompt":"winter"}`, wantError: "either product_id or product_query must be provided"},
		{name: "count below one", body: `{"product_id":"p1","count":0}`, wantError: "count"},
		{name: "wrong type", body: `{"product_id":42}`, wantError: "product_id"},
		{name: "malformed json", body: `{"product_id":`, wantError: "Request validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p, _ := newTestServer(t, nil)

			rec, body := do(t, s, http.MethodPost, "/api/topics/generate", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tt.wantError)
			p.AssertNotCalled(t, "GenerateTopics", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateTopics_FailureStatuses(t *testing.T) {
	tests := []struct {
		name       string
		result     generation.Result
		wantStatus int
		wantRaw    string
	}{
		{
			name:       "quota",
			result:     failed(errors.NewUpstreamQuotaError(stderrors.New("429 Too Many Requests")), ""),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "transient",
			result:     failed(errors.NewUpstreamTransientError(stderrors.New("502 bad gateway")), ""),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "parse failure keeps raw text",
			result:     failed(errors.NewParseError("no json"), "Sorry, here are ideas"),
			wantStatus: http.StatusBadGateway,
			wantRaw:    "Sorry, here are ideas",
		},
		{
			name:       "lookup failure",
			result:     failed(errors.NewContextLookupError(stderrors.New("db down")), ""),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p, _ := newTestServer(t, nil)
			p.On("GenerateTopics", mock.Anything, mock.Anything).Return(tt.result)

			rec, body := do(t, s, http.MethodPost, "/api/topics/generate", `{"product_id":"p1","count":3}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.result.Error, body["error"])
			if tt.wantRaw != "" {
				assert.Equal(t, tt.wantRaw, body["raw_content"])
			} else {
				assert.NotContains(t, body, "raw_content")
			}
		})
	}
}

func failed(err *errors.StandardError, raw string) generation.Result {
	return generation.Result{Error: err.Message, RawContent: raw, Err: err}
}

func TestBrandProductTopics_Defaults(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	p.On("GenerateBrandProductTopics", mock.Anything, mock.MatchedBy(func(r generation.TopicRequest) bool {
		return r.Count == 3 && r.UsePreviousTopics != nil && !*r.UsePreviousTopics
	}), true).Return(okTopics("A", "B", "C"))

	rec, _ := do(t, s, http.MethodPost, "/api/brand-product/topics", `{"product_id":"p1","brand_id":"b1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	p.AssertExpectations(t)
}

func TestBrandProductTopics_NoSave(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	p.On("GenerateBrandProductTopics", mock.Anything, mock.Anything, false).Return(okTopics("A"))

	rec, _ := do(t, s, http.MethodPost, "/api/brand-product/topics", `{"product_id":"p1","brand_id":"b1","save_to_db":false}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	p.AssertExpectations(t)
}

func TestGenerateMultiple_RequiresBrand(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodPost, "/api/topics/generate-multiple", `{"product_id":"p1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "brand_id")
}

func TestGenerateMultiple_PersistenceErrorStillSucceeds(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	res := okTopics("A")
	res.PersistenceError = "Failed to save generated results"
	p.On("GenerateBrandProductTopics", mock.Anything, mock.MatchedBy(func(r generation.TopicRequest) bool {
		return r.Count == 5
	}), true).Return(res)

	rec, body := do(t, s, http.MethodPost, "/api/topics/generate-multiple", `{"product_id":"p1","brand_id":"b1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Failed to save generated results", body["persistence_error"])
}

func TestApproveTopics(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	p.On("ApproveTopics", mock.Anything, mock.MatchedBy(func(items []generation.GeneratedItem) bool {
		return len(items) == 1 && items[0].RelevanceScore == 75 && items[0].Status == models.TopicStatusComplete
	}), true).Return(generation.Result{Success: true, Topics: []generation.GeneratedItem{}, Skipped: 0})

	rec, _ := do(t, s, http.MethodPost, "/api/topics/approve",
		`{"topics":[{"title":"Keep me","status":"complete","relevance_score":"75"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	p.AssertExpectations(t)
}

func TestApproveTopics_ItemWithoutTitle(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodPost, "/api/topics/approve", `{"topics":[{"status":"complete"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Topic review and listing
// ==========================

func TestListTopics_Limit(t *testing.T) {
	s, _, repo := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodGet, "/api/topics?status=approved", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, repo.lastFilter.Limit)
	assert.Equal(t, models.TopicStatusApproved, repo.lastFilter.Status)

	for _, bad := range []string{"0", "51", "ten"} {
		rec, _ := do(t, s, http.MethodGet, "/api/topics?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestTopicStatusTransitions(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodPost, "/api/topics/t1/reject", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", body["topic"].(map[string]interface{})["status"])

	rec, body = do(t, s, http.MethodPost, "/api/topics/missing/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "topic not found", body["error"])
}

// ==========================
// Content
// ==========================

func TestGenerateContent(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	p.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r generation.ContentRequest) bool {
		return r.TopicTitle == "Winter tea" && r.WithRelated != nil && !*r.WithRelated
	})).Return(generation.ContentResult{Success: true, Content: &models.Content{ID: "c9", Title: "Winter tea", Body: "# Winter tea"}})

	rec, body := do(t, s, http.MethodPost, "/api/content/generate", `{"topic_title":"Winter tea","with_related":false}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	content := body["content"].(map[string]interface{})
	assert.Equal(t, "c9", content["id"])
	assert.Equal(t, "# Winter tea", content["content"])
}

func TestGenerateContent_NotFound(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	nf := errors.NewResourceNotFoundError("topic", "t9")
	p.On("GenerateContent", mock.Anything, mock.Anything).Return(generation.ContentResult{Error: nf.Message, Err: nf})

	rec, _ := do(t, s, http.MethodPost, "/api/content/generate", `{"topic_id":"t9"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListContent(t *testing.T) {
	s, _, repo := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodGet, "/api/content?content_id=c1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Winter tea", body["content"].(map[string]interface{})["title"])

	rec, _ = do(t, s, http.MethodGet, "/api/content?topic_id=t1&limit=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.ContentFilter{TopicID: "t1", Limit: 3}, repo.lastContent)
}

func TestIllustrateContent(t *testing.T) {
	s, p, _ := newTestServer(t, nil)
	p.On("IllustrateContent", mock.Anything, "c1", "watercolor").
		Return(generation.ContentResult{Success: true, Content: &models.Content{ID: "c1", ImageBase64: "aW1n"}})

	rec, body := do(t, s, http.MethodPost, "/api/content/c1/image", `{"style":"watercolor"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aW1n", body["content"].(map[string]interface{})["image_base64"])
}

// ==========================
// Catalog and probes
// ==========================

func TestCatalogEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodGet, "/api/brands/b1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["knowledge"], 1)

	rec, _ = do(t, s, http.MethodGet, "/api/products/p1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProbes(t *testing.T) {
	s, _, _ := newTestServer(t, map[string]Check{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return stderrors.New("dial tcp: connection refused") },
	})

	rec, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
	assert.Contains(t, checks["redis"], "connection refused")

	rec, _ = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.ErrCodeInputInvalid))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(errors.ErrCodeUpstreamQuota))
	assert.Equal(t, http.StatusBadGateway, StatusFor(errors.ErrCodeCompletionMalformed))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.ErrCodePersistenceFailed))
}
