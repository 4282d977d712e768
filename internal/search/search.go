// internal/search/search.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"content-workers/internal/common/config"
	"content-workers/internal/common/errors"
	"content-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Index is the Elasticsearch side of retrieval: product lookup for free-text queries and
// related-content search for articles.
type Index struct {
	client       *elasticsearch.Client
	contentIndex string
	productIndex string
}

func New(client *elasticsearch.Client, cfg config.ElasticsearchConfig) *Index {
	return &Index{
		client:       client,
		contentIndex: cfg.ContentIndex,
		productIndex: cfg.ProductIndex,
	}
}

type productDoc struct {
	ID          string   `json:"id"`
	BrandID     string   `json:"brand_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Features    []string `json:"features,omitempty"`
}

type contentDoc struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	TopicID   string `json:"topic_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

var indexMappings = map[string]string{
	"products": `{"mappings":{"properties":{
		"id":{"type":"keyword"},"brand_id":{"type":"keyword"},
		"name":{"type":"text"},"description":{"type":"text"},
		"category":{"type":"keyword"},"features":{"type":"text"}}}}`,
	"content": `{"mappings":{"properties":{
		"id":{"type":"keyword"},"topic_id":{"type":"keyword"},
		"title":{"type":"text"},"content":{"type":"text"},
		"created_at":{"type":"date"}}}}`,
}

// EnsureIndices creates the product and content indices when they do not exist.
func (x *Index) EnsureIndices(ctx context.Context) error {
	for name, mapping := range map[string]string{
		x.productIndex: indexMappings["products"],
		x.contentIndex: indexMappings["content"],
	} {
		res, err := x.client.Indices.Exists([]string{name}, x.client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return errors.NewElasticsearchConnectionFailedError(err)
		}
		res.Body.Close()
		if res.StatusCode == 200 {
			continue
		}

		res, err = x.client.Indices.Create(name,
			x.client.Indices.Create.WithContext(ctx),
			x.client.Indices.Create.WithBody(strings.NewReader(mapping)),
		)
		if err != nil {
			return errors.NewElasticsearchConnectionFailedError(err)
		}
		if err := checkResponse(name, res); err != nil {
			return err
		}
	}
	return nil
}

// SearchProducts matches query against product names, descriptions and categories.
func (x *Index) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"name^3", "description^2", "features", "category"},
				"type":   "best_fields",
			},
		},
	}

	resp, err := x.search(ctx, x.productIndex, body, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.Product, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var d productDoc
		if err := json.Unmarshal(h.Source, &d); err != nil {
			return nil, errors.NewSearchQueryFailedError(x.productIndex, err)
		}
		p := models.Product{ID: d.ID, BrandID: d.BrandID, Name: d.Name, Description: d.Description, Category: d.Category}
		if p.ID == "" {
			p.ID = h.ID
		}
		if len(d.Features) > 0 {
			p.Features, _ = json.Marshal(d.Features)
		}
		out = append(out, p)
	}
	return out, nil
}

// SearchContent returns "title\ncontent" snippets of the stored articles closest to query.
func (x *Index) SearchContent(ctx context.Context, query string, limit int) ([]string, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	}

	resp, err := x.search(ctx, x.contentIndex, body, limit)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var d contentDoc
		if err := json.Unmarshal(h.Source, &d); err != nil {
			return nil, errors.NewSearchQueryFailedError(x.contentIndex, err)
		}
		out = append(out, d.Title+"\n"+d.Content)
	}
	return out, nil
}

// IndexContent stores an article so later generations can find it.
func (x *Index) IndexContent(ctx context.Context, c models.Content) error {
	return x.index(ctx, x.contentIndex, c.ID, contentDoc{
		ID:        c.ID,
		Title:     c.Title,
		Content:   c.Body,
		TopicID:   c.TopicID,
		CreatedAt: c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// IndexProduct stores a product document. features is the parsed feature list.
func (x *Index) IndexProduct(ctx context.Context, p models.Product, features []string) error {
	return x.index(ctx, x.productIndex, p.ID, productDoc{
		ID:          p.ID,
		BrandID:     p.BrandID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Features:    features,
	})
}

func (x *Index) index(ctx context.Context, index, id string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.NewInternalError(err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(raw),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	return checkResponse(index, res)
}

func (x *Index) search(ctx context.Context, index string, body map[string]interface{}, limit int) (*searchResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if limit <= 0 {
		limit = 5
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(index),
		x.client.Search.WithBody(bytes.NewReader(raw)),
		x.client.Search.WithSize(limit),
	)
	if err != nil {
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(index, fmt.Errorf("%s", res.String()))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, errors.NewSearchQueryFailedError(index, err)
	}
	return &out, nil
}

func checkResponse(index string, res *esapi.Response) error {
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewSearchQueryFailedError(index, fmt.Errorf("%s", res.String()))
	}
	return nil
}
