// cmd/content-service/reindex.go
package main

import (
	"fmt"

	"content-workers/internal/generation"
	"content-workers/internal/search"
	"content-workers/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reindexLimit int

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Copy products and stored content from Postgres into Elasticsearch",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.zapLog.Sync()

		if !rt.cfg.Database.Elasticsearch.Enabled {
			return fmt.Errorf("database.elasticsearch.enabled is false")
		}

		ctx := cmd.Context()
		pg, err := rt.connectPostgres(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		es, err := rt.connectElasticsearch(ctx)
		if err != nil {
			return err
		}

		idx := search.New(es.Client, rt.cfg.Database.Elasticsearch)
		if err := idx.EnsureIndices(ctx); err != nil {
			return err
		}

		st := store.New(pg.DB)
		products, err := st.ListProducts(ctx, "", reindexLimit)
		if err != nil {
			return err
		}
		for _, p := range products {
			if err := idx.IndexProduct(ctx, p, generation.ParseFeatures(p.Features)); err != nil {
				return fmt.Errorf("index product %s: %w", p.ID, err)
			}
		}

		content, err := st.RecentContent(ctx, reindexLimit)
		if err != nil {
			return err
		}
		for _, c := range content {
			if err := idx.IndexContent(ctx, c); err != nil {
				return fmt.Errorf("index content %s: %w", c.ID, err)
			}
		}

		rt.zapLog.Info("reindex complete", zap.Int("products", len(products)), zap.Int("content", len(content)))
		return nil
	},
}

func init() {
	reindexCmd.Flags().IntVar(&reindexLimit, "limit", 1000, "maximum rows to copy per index")
}
