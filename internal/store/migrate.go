// internal/store/migrate.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"content-workers/internal/common/database"
	"content-workers/internal/common/logger"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations is the complete schema history. Append only; never edit an applied entry.
var migrations = []migration{
	{
		version: 1,
		name:    "catalog and topics",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS brands (
				id          UUID PRIMARY KEY,
				name        TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				website     TEXT NOT NULL DEFAULT '',
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS products (
				id          UUID PRIMARY KEY,
				brand_id    UUID REFERENCES brands(id),
				name        TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				features    JSONB NOT NULL DEFAULT '[]',
				category    TEXT NOT NULL DEFAULT '',
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS brand_knowledge (
				id         UUID PRIMARY KEY,
				brand_id   UUID NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
				title      TEXT NOT NULL,
				content    TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS topics (
				id              UUID PRIMARY KEY,
				title           TEXT NOT NULL,
				product_id      UUID REFERENCES products(id),
				brand_id        UUID REFERENCES brands(id),
				keywords        TEXT[] NOT NULL DEFAULT '{}',
				relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
				target_audience TEXT NOT NULL DEFAULT '',
				category        TEXT NOT NULL DEFAULT '',
				prompt          TEXT NOT NULL DEFAULT '',
				status          TEXT NOT NULL DEFAULT 'draft',
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_topics_product_created ON topics (product_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_topics_brand ON topics (brand_id)`,
		},
	},
	{
		version: 2,
		name:    "content",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS content (
				id           UUID PRIMARY KEY,
				title        TEXT NOT NULL,
				content      TEXT NOT NULL,
				topic_id     UUID REFERENCES topics(id),
				image_base64 TEXT NOT NULL DEFAULT '',
				created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_content_created ON content (created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_content_topic ON content (topic_id)`,
		},
	},
	{
		version: 3,
		name:    "topic status check",
		stmts: []string{
			`ALTER TABLE topics ADD CONSTRAINT topics_status_check
				CHECK (status IN ('draft', 'pending', 'complete', 'approved', 'rejected', 'published'))`,
		},
	},
}

// LatestVersion is the schema version this binary expects.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies every migration newer than the recorded version, each in its own transaction.
// It returns the number of migrations applied.
func Migrate(ctx context.Context, db *sql.DB, log logger.Logger) (int, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}

		log.Info("migration applied", map[string]interface{}{"version": m.version, "name": m.name})
		applied++
	}

	return applied, nil
}

// CurrentVersion returns the highest applied migration, or 0 for an empty database.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}
