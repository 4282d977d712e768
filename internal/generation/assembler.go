// internal/generation/assembler.go
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"content-workers/internal/common/errors"
	"content-workers/internal/common/logger"
	"content-workers/internal/models"
)

// Catalog is the read side of the store used to build generation context.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	RecentTopicTitles(ctx context.Context, productID string, limit int) ([]string, error)
	SiblingTopicTitles(ctx context.Context, brandID, excludeProductID string, limit int) ([]string, error)
}

// ProductRetriever finds products for a free-text query.
type ProductRetriever interface {
	RetrieveProducts(ctx context.Context, query string, limit int) ([]models.Product, error)
}

// ContextInput is what the assembler needs from a request, defaults already applied.
type ContextInput struct {
	ProductID         string
	ProductQuery      string
	BrandID           string
	UsePreviousTopics bool
	MaxPreviousTopics int
}

type Assembler struct {
	catalog    Catalog
	products   ProductRetriever
	queryLimit int
	log        logger.Logger
}

func NewAssembler(catalog Catalog, products ProductRetriever, queryLimit int, log logger.Logger) *Assembler {
	if queryLimit <= 0 {
		queryLimit = 5
	}
	return &Assembler{
		catalog:    catalog,
		products:   products,
		queryLimit: queryLimit,
		log:        log.With(map[string]interface{}{"component": "assembler"}),
	}
}

// Assemble builds the context block: subject, then brand, then existing titles, separated by blank lines.
// Only a missing subject is an error; brand and title lookups that fail are skipped.
func (a *Assembler) Assemble(ctx context.Context, in ContextInput) (string, error) {
	subject, err := a.subject(ctx, in)
	if err != nil {
		return "", err
	}

	var (
		wg       sync.WaitGroup
		brand    *models.Brand
		own      []string
		siblings []string
	)

	if in.BrandID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := a.catalog.GetBrand(ctx, in.BrandID)
			if err != nil {
				a.log.Warn("brand lookup failed, continuing without brand", map[string]interface{}{"brandId": in.BrandID, "error": err})
				return
			}
			brand = b
		}()
	}

	if in.UsePreviousTopics && in.MaxPreviousTopics > 0 {
		if in.ProductID != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				titles, err := a.catalog.RecentTopicTitles(ctx, in.ProductID, in.MaxPreviousTopics)
				if err != nil {
					a.log.Warn("topic history lookup failed", map[string]interface{}{"productId": in.ProductID, "error": err})
					return
				}
				own = titles
			}()
		}
		if in.BrandID != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				titles, err := a.catalog.SiblingTopicTitles(ctx, in.BrandID, in.ProductID, in.MaxPreviousTopics)
				if err != nil {
					a.log.Warn("sibling topic lookup failed", map[string]interface{}{"brandId": in.BrandID, "error": err})
					return
				}
				siblings = titles
			}()
		}
	}

	wg.Wait()

	sections := []string{subject}
	if brand != nil {
		sections = append(sections, describeBrand(*brand))
	}
	if prior := describeTitles(append(own, siblings...)); prior != "" {
		sections = append(sections, prior)
	}
	return joinSections(sections), nil
}

func (a *Assembler) subject(ctx context.Context, in ContextInput) (string, error) {
	switch {
	case in.ProductID != "":
		p, err := a.catalog.GetProduct(ctx, in.ProductID)
		if err != nil {
			switch errors.CodeOf(err) {
			case errors.ErrCodeResourceNotFound:
				return "", errors.NewInputError(fmt.Sprintf("product %s not found", in.ProductID))
			case errors.ErrCodeInputInvalid:
				return "", err
			}
			return "", errors.NewContextLookupError(err)
		}
		return DescribeProduct(*p), nil

	case strings.TrimSpace(in.ProductQuery) != "":
		if a.products == nil {
			return "", errors.NewInputError("product_query is not supported without a product retriever")
		}
		found, err := a.products.RetrieveProducts(ctx, in.ProductQuery, a.queryLimit)
		if err != nil {
			return "", errors.NewContextLookupError(err)
		}
		descs := make([]string, 0, len(found))
		for _, p := range found {
			descs = append(descs, DescribeProduct(p))
		}
		if s := joinSections(descs); s != "" {
			return s, nil
		}
		return "", errors.NewInputError(fmt.Sprintf("no products match query %q", in.ProductQuery))

	default:
		return "", errors.NewInputError("either product_id or product_query must be provided")
	}
}

// DescribeProduct renders "Name: ...\nDescription: ..." plus a bulleted feature list when present.
func DescribeProduct(p models.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nDescription: %s", p.Name, p.Description)

	if features := ParseFeatures(p.Features); len(features) > 0 {
		b.WriteString("\nFeatures:")
		for _, f := range features {
			b.WriteString("\n- ")
			b.WriteString(f)
		}
	}
	return b.String()
}

func describeBrand(b models.Brand) string {
	return fmt.Sprintf("Brand:\nName: %s\nDescription: %s", b.Name, b.Description)
}

func describeTitles(titles []string) string {
	lines := make([]string, 0, len(titles)+1)
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			lines = append(lines, "- "+t)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Existing topics:\n" + strings.Join(lines, "\n")
}

func joinSections(sections []string) string {
	kept := sections[:0:0]
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n")
}

// ParseFeatures reads the JSONB features column. It accepts an array, a string holding an encoded array,
// or any other value, which is kept verbatim as a single feature.
func ParseFeatures(raw json.RawMessage) []string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var list []interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		return featureStrings(list)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return featureStrings(list)
		}
		return []string{s}
	}

	return []string{trimmed}
}

func featureStrings(list []interface{}) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		var s string
		switch v := item.(type) {
		case string:
			s = v
		case nil:
			continue
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			s = string(b)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
