// internal/generation/retriever.go
package generation

import (
	"context"

	"content-workers/internal/common/logger"
	"content-workers/internal/models"
)

// Searcher is the full-text index. A nil Searcher means keyword ranking is used instead.
type Searcher interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error)
	SearchContent(ctx context.Context, query string, limit int) ([]string, error)
}

// CandidateSource supplies the pools the keyword ranker chooses from.
type CandidateSource interface {
	ProductCandidates(ctx context.Context, limit int) ([]models.Product, error)
	RecentContent(ctx context.Context, limit int) ([]models.Content, error)
}

// Retriever prefers the search index and falls back to keyword-overlap ranking over recent rows.
type Retriever struct {
	search   Searcher
	source   CandidateSource
	poolSize int
	maxLen   int
	log      logger.Logger
}

func NewRetriever(search Searcher, source CandidateSource, poolSize, maxLen int, log logger.Logger) *Retriever {
	if poolSize <= 0 {
		poolSize = 50
	}
	return &Retriever{
		search:   search,
		source:   source,
		poolSize: poolSize,
		maxLen:   maxLen,
		log:      log.With(map[string]interface{}{"component": "retriever"}),
	}
}

func (r *Retriever) RetrieveProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	if r.search != nil {
		found, err := r.search.SearchProducts(ctx, query, limit)
		if err == nil {
			return found, nil
		}
		r.log.Warn("product search failed, ranking by keywords", map[string]interface{}{"error": err})
	}

	pool, err := r.source.ProductCandidates(ctx, r.poolSize)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(pool))
	for i, p := range pool {
		texts[i] = p.Name + " " + p.Description
	}

	ranked := Rank(query, texts, r.maxLen, limit)
	out := make([]models.Product, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, pool[c.Index])
	}
	return out, nil
}

// RelatedContent returns up to limit snippets of stored content relevant to topic.
func (r *Retriever) RelatedContent(ctx context.Context, topic string, limit int) ([]string, error) {
	if r.search != nil {
		found, err := r.search.SearchContent(ctx, topic, limit)
		if err == nil {
			return found, nil
		}
		r.log.Warn("content search failed, ranking by keywords", map[string]interface{}{"error": err})
	}

	pool, err := r.source.RecentContent(ctx, r.poolSize)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(pool))
	for i, c := range pool {
		texts[i] = c.Title + "\n" + c.Body
	}

	ranked := Rank(topic, texts, r.maxLen, limit)
	out := make([]string, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, c.Text)
	}
	return out, nil
}
