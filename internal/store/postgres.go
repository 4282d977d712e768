// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"content-workers/internal/common/database"
	"content-workers/internal/common/errors"
	"content-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const defaultListLimit = 10

// Store is the Postgres-backed catalog, topic and content repository.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// TopicFilter narrows ListTopics. Zero fields match everything.
type TopicFilter struct {
	ProductID string
	BrandID   string
	Status    models.TopicStatus
	Limit     int
}

// ContentFilter narrows ListContent.
type ContentFilter struct {
	TopicID string
	Limit   int
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// pgInvalidTextRepresentation is raised when an id is not a valid uuid literal.
const pgInvalidTextRepresentation = "22P02"

func malformedID(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == pgInvalidTextRepresentation
}

// queryError classifies a failed read.
func queryError(ctx context.Context, op string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.NewQueryTimeoutError(op)
	}
	if malformedID(err) {
		return errors.NewInputError(fmt.Sprintf("%s: malformed identifier", op))
	}
	return errors.NewQueryExecutionFailedError(op, err)
}

// lookupError classifies a failed single-row read. An id that cannot exist is reported as missing.
func lookupError(ctx context.Context, op, resource, id string, err error) error {
	if err == sql.ErrNoRows || malformedID(err) {
		return errors.NewResourceNotFoundError(resource, id)
	}
	return queryError(ctx, op, err)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// ==========================
// Catalog
// ==========================

const productColumns = `id, COALESCE(brand_id::text, ''), name, description, features, category, created_at, updated_at`

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	var features []byte
	err := row.Scan(&p.ID, &p.BrandID, &p.Name, &p.Description, &features, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if len(features) > 0 {
		p.Features = append([]byte(nil), features...)
	}
	return p, err
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, lookupError(ctx, "get_product", "product", id, err)
	}
	return &p, nil
}

// ListProducts returns products newest first, optionally for one brand.
func (s *Store) ListProducts(ctx context.Context, brandID string, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []interface{}{}
	if brandID != "" {
		query += ` WHERE brand_id = $1`
		args = append(args, brandID)
	}
	args = append(args, limitOr(limit, 50))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	return s.queryProducts(ctx, "list_products", query, args...)
}

// ProductCandidates returns the pool the keyword ranker searches when no search index is available.
func (s *Store) ProductCandidates(ctx context.Context, limit int) ([]models.Product, error) {
	return s.queryProducts(ctx, "product_candidates",
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1`, limitOr(limit, 50))
}

func (s *Store) queryProducts(ctx context.Context, op, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(ctx, op, err)
	}
	defer rows.Close()

	out := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, queryError(ctx, op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, op, err)
	}
	return out, nil
}

const brandColumns = `id, name, description, website, created_at, updated_at`

func scanBrand(row rowScanner) (models.Brand, error) {
	var b models.Brand
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Website, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *Store) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	b, err := scanBrand(s.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = $1`, id))
	if err != nil {
		return nil, lookupError(ctx, "get_brand", "brand", id, err)
	}
	return &b, nil
}

func (s *Store) ListBrands(ctx context.Context, limit int) ([]models.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+brandColumns+` FROM brands ORDER BY name LIMIT $1`, limitOr(limit, 50))
	if err != nil {
		return nil, queryError(ctx, "list_brands", err)
	}
	defer rows.Close()

	out := []models.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, queryError(ctx, "list_brands", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BrandKnowledge returns the reference entries attached to a brand, oldest first.
func (s *Store) BrandKnowledge(ctx context.Context, brandID string) ([]models.BrandKnowledge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, title, content, created_at
		FROM brand_knowledge
		WHERE brand_id = $1
		ORDER BY created_at`, brandID)
	if err != nil {
		return nil, queryError(ctx, "brand_knowledge", err)
	}
	defer rows.Close()

	out := []models.BrandKnowledge{}
	for rows.Next() {
		var k models.BrandKnowledge
		if err := rows.Scan(&k.ID, &k.BrandID, &k.Title, &k.Body, &k.CreatedAt); err != nil {
			return nil, queryError(ctx, "brand_knowledge", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RecentTopicTitles returns the newest topic titles for a product.
func (s *Store) RecentTopicTitles(ctx context.Context, productID string, limit int) ([]string, error) {
	return s.queryTitles(ctx, "recent_topic_titles", `
		SELECT title FROM topics
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, productID, limit)
}

// SiblingTopicTitles returns the newest topic titles of the brand's other products.
func (s *Store) SiblingTopicTitles(ctx context.Context, brandID, excludeProductID string, limit int) ([]string, error) {
	return s.queryTitles(ctx, "sibling_topic_titles", `
		SELECT t.title FROM topics t
		JOIN products p ON p.id = t.product_id
		WHERE p.brand_id = $1 AND t.product_id::text <> $2
		ORDER BY t.created_at DESC
		LIMIT $3`, brandID, excludeProductID, limit)
}

func (s *Store) queryTitles(ctx context.Context, op, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(ctx, op, err)
	}
	defer rows.Close()

	titles := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, queryError(ctx, op, err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// ==========================
// Topics
// ==========================

const topicColumns = `id, title, COALESCE(product_id::text, ''), COALESCE(brand_id::text, ''), keywords,
	relevance_score, target_audience, category, prompt, status, created_at, updated_at`

func scanTopic(row rowScanner) (models.Topic, error) {
	var t models.Topic
	var status string
	err := row.Scan(&t.ID, &t.Title, &t.ProductID, &t.BrandID, pq.Array(&t.Keywords),
		&t.RelevanceScore, &t.TargetAudience, &t.Category, &t.Prompt, &status, &t.CreatedAt, &t.UpdatedAt)
	t.Status = models.TopicStatus(status)
	if t.Keywords == nil {
		t.Keywords = []string{}
	}
	return t, err
}

func (s *Store) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	t, err := scanTopic(s.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id))
	if err != nil {
		return nil, lookupError(ctx, "get_topic", "topic", id, err)
	}
	return &t, nil
}

// SaveTopics inserts all topics in one transaction. Either every row is written or none is.
func (s *Store) SaveTopics(ctx context.Context, topics []models.Topic) ([]models.Topic, error) {
	saved := make([]models.Topic, 0, len(topics))

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, t := range topics {
			keywords := t.Keywords
			if keywords == nil {
				keywords = []string{}
			}
			status := t.Status
			if status == "" {
				status = models.TopicStatusDraft
			}

			out := t
			out.Keywords = keywords
			var st string
			err := tx.QueryRowContext(ctx, `
				INSERT INTO topics (id, title, product_id, brand_id, keywords, relevance_score,
				                    target_audience, category, prompt, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING id, title, status, created_at`,
				uuid.NewString(), t.Title, nullable(t.ProductID), nullable(t.BrandID), pq.Array(keywords),
				t.RelevanceScore, t.TargetAudience, t.Category, t.Prompt, string(status),
			).Scan(&out.ID, &out.Title, &st, &out.CreatedAt)
			if err != nil {
				return err
			}
			out.Status = models.TopicStatus(st)
			out.UpdatedAt = out.CreatedAt
			saved = append(saved, out)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewPersistenceError(err)
	}
	return saved, nil
}

// ListTopics returns topics newest first.
func (s *Store) ListTopics(ctx context.Context, f TopicFilter) ([]models.Topic, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.BrandID != "" {
		add("brand_id = $%d", f.BrandID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	query := `SELECT ` + topicColumns + ` FROM topics`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limitOr(f.Limit, defaultListLimit))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(ctx, "list_topics", err)
	}
	defer rows.Close()

	out := []models.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, queryError(ctx, "list_topics", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetTopicStatus moves a topic to status and returns the updated row.
func (s *Store) SetTopicStatus(ctx context.Context, id string, status models.TopicStatus) (*models.Topic, error) {
	t, err := scanTopic(s.db.QueryRowContext(ctx, `
		UPDATE topics SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+topicColumns, id, string(status)))
	if err == sql.ErrNoRows || malformedID(err) {
		return nil, errors.NewResourceNotFoundError("topic", id)
	}
	if err != nil {
		return nil, errors.NewPersistenceError(err)
	}
	return &t, nil
}

// ==========================
// Content
// ==========================

const contentColumns = `id, title, content, COALESCE(topic_id::text, ''), image_base64, created_at`

func scanContent(row rowScanner) (models.Content, error) {
	var c models.Content
	err := row.Scan(&c.ID, &c.Title, &c.Body, &c.TopicID, &c.ImageBase64, &c.CreatedAt)
	return c, err
}

func (s *Store) SaveContent(ctx context.Context, c models.Content) (models.Content, error) {
	c.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO content (id, title, content, topic_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		c.ID, c.Title, c.Body, nullable(c.TopicID),
	).Scan(&c.CreatedAt)
	if err != nil {
		return models.Content{}, errors.NewPersistenceError(err)
	}
	return c, nil
}

func (s *Store) GetContent(ctx context.Context, id string) (*models.Content, error) {
	c, err := scanContent(s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id = $1`, id))
	if err != nil {
		return nil, lookupError(ctx, "get_content", "content", id, err)
	}
	return &c, nil
}

func (s *Store) ListContent(ctx context.Context, f ContentFilter) ([]models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content`
	args := []interface{}{}
	if f.TopicID != "" {
		query += ` WHERE topic_id = $1`
		args = append(args, f.TopicID)
	}
	args = append(args, limitOr(f.Limit, defaultListLimit))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	return s.queryContent(ctx, "list_content", query, args...)
}

// RecentContent feeds the related-content ranker.
func (s *Store) RecentContent(ctx context.Context, limit int) ([]models.Content, error) {
	return s.queryContent(ctx, "recent_content",
		`SELECT `+contentColumns+` FROM content ORDER BY created_at DESC LIMIT $1`, limitOr(limit, 50))
}

func (s *Store) queryContent(ctx context.Context, op, query string, args ...interface{}) ([]models.Content, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(ctx, op, err)
	}
	defer rows.Close()

	out := []models.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, queryError(ctx, op, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SetContentImage(ctx context.Context, id, imageBase64 string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE content SET image_base64 = $2 WHERE id = $1`, id, imageBase64)
	if malformedID(err) {
		return errors.NewResourceNotFoundError("content", id)
	}
	if err != nil {
		return errors.NewPersistenceError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewResourceNotFoundError("content", id)
	}
	return nil
}
