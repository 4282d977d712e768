package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"content-workers/internal/common/errors"
	"content-workers/internal/common/logger"
	"content-workers/internal/generation"
	"content-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

var created = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func topicRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "product_id", "brand_id", "keywords", "relevance_score",
		"target_audience", "category", "prompt", "status", "created_at", "updated_at",
	})
}

// ==========================
// Catalog
// ==========================

func TestStore_GetProduct(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "brand_id", "name", "description", "features", "category", "created_at", "updated_at"}).
			AddRow("p1", "b1", "Kettle", "Boils water", []byte(`["Fast","Quiet"]`), "kitchen", created, created))

	p, err := s.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Kettle", p.Name)
	assert.Equal(t, "b1", p.BrandID)
	assert.JSONEq(t, `["Fast","Quiet"]`, string(p.Features))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetProduct_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM products").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := s.GetProduct(context.Background(), "missing")
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
}

func TestStore_MalformedIDIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	badUUID := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "not-a-uuid"`}

	mock.ExpectQuery("SELECT (.+) FROM products").WithArgs("not-a-uuid").WillReturnError(badUUID)
	mock.ExpectQuery("SELECT (.+) FROM brands").WithArgs("not-a-uuid").WillReturnError(badUUID)
	mock.ExpectQuery("SELECT (.+) FROM topics").WithArgs("not-a-uuid").WillReturnError(badUUID)
	mock.ExpectQuery("SELECT (.+) FROM content").WithArgs("not-a-uuid").WillReturnError(badUUID)
	mock.ExpectQuery("UPDATE topics SET status").WithArgs("not-a-uuid", "approved").WillReturnError(badUUID)
	mock.ExpectExec("UPDATE content SET image_base64").WithArgs("not-a-uuid", "aW1n").WillReturnError(badUUID)

	ctx := context.Background()
	_, err := s.GetProduct(ctx, "not-a-uuid")
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
	_, err = s.GetBrand(ctx, "not-a-uuid")
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
	_, err = s.GetTopic(ctx, "not-a-uuid")
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
	_, err = s.GetContent(ctx, "not-a-uuid")
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
	_, err = s.SetTopicStatus(ctx, "not-a-uuid", models.TopicStatusApproved)
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
	err = s.SetContentImage(ctx, "not-a-uuid", "aW1n")
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MalformedFilterIsInputError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM content WHERE topic_id").WillReturnError(&pq.Error{Code: "22P02"})

	_, err := s.ListContent(context.Background(), ContentFilter{TopicID: "nope"})
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInputInvalid, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestAssembler_MalformedProductIDIsNotRetried(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM products").WithArgs("not-a-uuid").WillReturnError(&pq.Error{Code: "22P02"})

	log := logger.NewTestLogger(t)
	_, err := generation.NewAssembler(s, nil, 5, log).Assemble(context.Background(), generation.ContextInput{ProductID: "not-a-uuid"})

	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInputInvalid, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestStore_GetBrand_QueryFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM brands").WithArgs("b1").WillReturnError(sql.ErrConnDone)

	_, err := s.GetBrand(context.Background(), "b1")
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestStore_TopicTitles(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT title FROM topics").
		WithArgs("p1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("Newest").AddRow("Older"))
	mock.ExpectQuery("SELECT t.title FROM topics t").
		WithArgs("b1", "p1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"title"}))

	titles, err := s.RecentTopicTitles(context.Background(), "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Newest", "Older"}, titles)

	siblings, err := s.SiblingTopicTitles(context.Background(), "b1", "p1", 5)
	require.NoError(t, err)
	assert.Empty(t, siblings)
	assert.NotNil(t, siblings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Topics
// ==========================

func TestStore_SaveTopics_SingleTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO topics").
		WithArgs(sqlmock.AnyArg(), "Descaling 101", "p1", nil, sqlmock.AnyArg(), 90.0, "owners", "Tips & Tricks", "", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "created_at"}).
			AddRow("11111111-1111-1111-1111-111111111111", "Descaling 101", "pending", created))
	mock.ExpectQuery("INSERT INTO topics").
		WithArgs(sqlmock.AnyArg(), "Tea temperatures", "p1", nil, sqlmock.AnyArg(), 0.0, "", "", "", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "created_at"}).
			AddRow("22222222-2222-2222-2222-222222222222", "Tea temperatures", "pending", created))
	mock.ExpectCommit()

	saved, err := s.SaveTopics(context.Background(), []models.Topic{
		{Title: "Descaling 101", ProductID: "p1", Keywords: []string{"descale"}, RelevanceScore: 90,
			TargetAudience: "owners", Category: "Tips & Tricks", Status: models.TopicStatusPending},
		{Title: "Tea temperatures", ProductID: "p1", Status: models.TopicStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", saved[0].ID)
	assert.Equal(t, created, saved[1].CreatedAt)
	assert.Equal(t, []string{}, saved[1].Keywords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveTopics_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO topics").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "created_at"}).AddRow("id-1", "A", "draft", created))
	mock.ExpectQuery("INSERT INTO topics").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	saved, err := s.SaveTopics(context.Background(), []models.Topic{{Title: "A"}, {Title: "B"}})
	assert.Nil(t, saved)
	assert.Equal(t, errors.ErrCodePersistenceFailed, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTopic(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM topics WHERE id = \\$1").
		WithArgs("t1").
		WillReturnRows(topicRow().AddRow("t1", "Descaling 101", "p1", "", "{descale,kettle}", 90.0, "owners", "Tips & Tricks", "", "approved", created, created))

	topic, err := s.GetTopic(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"descale", "kettle"}, topic.Keywords)
	assert.Equal(t, models.TopicStatusApproved, topic.Status)
	assert.Empty(t, topic.BrandID)
}

func TestStore_ListTopics_BuildsFilter(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM topics WHERE product_id = \\$1 AND status = \\$2 ORDER BY created_at DESC LIMIT \\$3").
		WithArgs("p1", "approved", 10).
		WillReturnRows(topicRow())

	topics, err := s.ListTopics(context.Background(), TopicFilter{ProductID: "p1", Status: models.TopicStatusApproved})
	require.NoError(t, err)
	assert.Empty(t, topics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetTopicStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE topics SET status").WithArgs("t9", "rejected").WillReturnError(sql.ErrNoRows)

	_, err := s.SetTopicStatus(context.Background(), "t9", models.TopicStatusRejected)
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
}

// ==========================
// Content
// ==========================

func TestStore_SaveContent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO content").
		WithArgs(sqlmock.AnyArg(), "Winter tea", "# Winter tea", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	c, err := s.SaveContent(context.Background(), models.Content{Title: "Winter tea", Body: "# Winter tea"})
	require.NoError(t, err)
	assert.Len(t, c.ID, 36)
	assert.Equal(t, created, c.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetContentImage(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE content SET image_base64").WithArgs("c1", "aW1n").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE content SET image_base64").WithArgs("c2", "aW1n").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.SetContentImage(context.Background(), "c1", "aW1n"))
	err := s.SetContentImage(context.Background(), "c2", "aW1n")
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
}

func TestStore_ListContent_ByTopic(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM content WHERE topic_id = \\$1 ORDER BY created_at DESC LIMIT \\$2").
		WithArgs("t1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "topic_id", "image_base64", "created_at"}).
			AddRow("c1", "Winter tea", "body", "t1", "", created))

	items, err := s.ListContent(context.Background(), ContentFilter{TopicID: "t1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t1", items[0].TopicID)
}

// ==========================
// Migrations
// ==========================

func TestMigrate_AppliesPendingOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT MAX\\(version\\) FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(1)))

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS content").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_content_created").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_content_topic").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2, "content").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE topics ADD CONSTRAINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(3, "topic status check").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 3, LatestVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsAtFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT MAX\\(version\\)").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(2)))
	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE topics").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), db, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 3")
	assert.Equal(t, 0, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
