//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"content-workers/internal/common/config"
	"content-workers/internal/common/database"
	"content-workers/internal/common/logger"
	"content-workers/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive a running content-service (make it reachable at CONTENT_SERVICE_URL) backed by the
// same Postgres the config points at, with a real model provider behind it.

var (
	baseURL string
	db      *sql.DB
	client  = &http.Client{Timeout: 3 * time.Minute}
)

type fixture struct {
	brandID   string
	productID string
}

func TestMain(m *testing.M) {
	baseURL = os.Getenv("CONTENT_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		panic(fmt.Sprintf("postgres open failed: %v", err))
	}
	db = pg.DB

	if _, err := store.Migrate(context.Background(), db, logger.NewNoOpLogger()); err != nil {
		panic(fmt.Sprintf("migrate failed: %v", err))
	}

	code := m.Run()
	pg.Close()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	assertServiceReady(t)
	fx := seedCatalog(t)

	t.Run("generate single topic", func(t *testing.T) { testGenerateTopic(t, fx) })
	t.Run("brand product topics saved for review", func(t *testing.T) { testBrandProductTopics(t, fx) })
	t.Run("approve reviewed topics", func(t *testing.T) { testApproveTopics(t, fx) })
	t.Run("generate content for stored topic", func(t *testing.T) { testGenerateContent(t, fx) })
	t.Run("request errors", testRequestErrors)
}

// ==========================
// Setup
// ==========================

func assertServiceReady(t *testing.T) {
	t.Helper()
	status, body := call(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, status, "service not ready: %v", body)
	assert.Equal(t, "ready", body["status"])
}

func seedCatalog(t *testing.T) fixture {
	t.Helper()
	fx := fixture{brandID: uuid.NewString(), productID: uuid.NewString()}
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO brands (id, name, description) VALUES ($1, $2, $3)`,
		fx.brandID, "E2E Kettles", "Small-batch kitchen appliances")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO products (id, brand_id, name, description, features, category) VALUES ($1, $2, $3, $4, $5, $6)`,
		fx.productID, fx.brandID, "Pour-over kettle", "Gooseneck kettle with temperature hold",
		`["temperature hold", "gooseneck spout"]`, "kitchen")
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `DELETE FROM content WHERE topic_id IN (SELECT id FROM topics WHERE brand_id = $1)`, fx.brandID)
		_, _ = db.ExecContext(ctx, `DELETE FROM topics WHERE brand_id = $1 OR product_id = $2`, fx.brandID, fx.productID)
		_, _ = db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, fx.productID)
		_, _ = db.ExecContext(ctx, `DELETE FROM brands WHERE id = $1`, fx.brandID)
	})
	return fx
}

// ==========================
// Scenarios
// ==========================

func testGenerateTopic(t *testing.T, fx fixture) {
	status, body := call(t, http.MethodPost, "/api/topics/generate", map[string]interface{}{
		"product_id": fx.productID,
		"brand_id":   fx.brandID,
	})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, true, body["success"])
	require.Len(t, body["topics"], 1)
}

func testBrandProductTopics(t *testing.T, fx fixture) {
	status, body := call(t, http.MethodPost, "/api/brand-product/topics", map[string]interface{}{
		"product_id": fx.productID,
		"brand_id":   fx.brandID,
		"count":      3,
	})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Empty(t, body["persistence_error"])

	status, list := call(t, http.MethodGet, "/api/topics?status=pending&product_id="+fx.productID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, list["topics"])
}

func testApproveTopics(t *testing.T, fx fixture) {
	status, body := call(t, http.MethodPost, "/api/topics/approve", map[string]interface{}{
		"topics": []map[string]interface{}{
			{"title": "Why water temperature matters for green tea", "status": "complete", "relevance_score": "85",
				"product_id": fx.productID, "brand_id": fx.brandID, "seo_keywords": []string{"green tea"}},
			{"title": "Not ready yet", "status": "draft", "product_id": fx.productID},
		},
	})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, float64(1), body["skipped"])
	require.Len(t, body["topics"], 1)

	id := body["topics"].([]interface{})[0].(map[string]interface{})["id"].(string)
	status, rejected := call(t, http.MethodPost, "/api/topics/"+id+"/reject", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", rejected["topic"].(map[string]interface{})["status"])
}

func testGenerateContent(t *testing.T, fx fixture) {
	var topicID string
	err := db.QueryRowContext(context.Background(),
		`SELECT id FROM topics WHERE product_id = $1 ORDER BY created_at DESC LIMIT 1`, fx.productID).Scan(&topicID)
	require.NoError(t, err)

	status, body := call(t, http.MethodPost, "/api/content/generate", map[string]interface{}{"topic_id": topicID})
	require.Equal(t, http.StatusOK, status, "%v", body)
	content := body["content"].(map[string]interface{})
	assert.NotEmpty(t, content["content"])

	status, got := call(t, http.MethodGet, "/api/content?content_id="+content["id"].(string), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, content["title"], got["content"].(map[string]interface{})["title"])
}

func testRequestErrors(t *testing.T) {
	status, _ := call(t, http.MethodPost, "/api/topics/generate", map[string]interface{}{"prompt": "no subject"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, http.MethodGet, "/api/topics/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodGet, "/api/topics?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

// ==========================
// Helpers
// ==========================

func call(t *testing.T, method, path string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req, err := http.NewRequest(method, baseURL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}
