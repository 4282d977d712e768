package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"content-workers/internal/common/errors"
	"content-workers/internal/llm"
	"content-workers/internal/models"

	"github.com/stretchr/testify/mock"
)

// ==========================
// Fake store
// ==========================

type fakeStore struct {
	mu         sync.Mutex
	products   map[string]models.Product
	brands     map[string]models.Brand
	titles     map[string][]string // by product id
	siblings   map[string][]string // by brand id
	topics     map[string]models.Topic
	content    map[string]models.Content
	recent     []models.Content
	failLookup error
	failBrand  error
	failSave   error
	saved      [][]models.Topic
	images     map[string]string
	nextID     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[string]models.Product{},
		brands:   map[string]models.Brand{},
		titles:   map[string][]string{},
		siblings: map[string][]string{},
		topics:   map[string]models.Topic{},
		content:  map[string]models.Content{},
		images:   map[string]string{},
	}
}

func (f *fakeStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if f.failLookup != nil {
		return nil, f.failLookup
	}
	p, ok := f.products[id]
	if !ok {
		return nil, errors.NewResourceNotFoundError("product", id)
	}
	return &p, nil
}

func (f *fakeStore) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	if f.failBrand != nil {
		return nil, f.failBrand
	}
	b, ok := f.brands[id]
	if !ok {
		return nil, errors.NewResourceNotFoundError("brand", id)
	}
	return &b, nil
}

func (f *fakeStore) RecentTopicTitles(ctx context.Context, productID string, limit int) ([]string, error) {
	return capped(f.titles[productID], limit), nil
}

func (f *fakeStore) SiblingTopicTitles(ctx context.Context, brandID, excludeProductID string, limit int) ([]string, error) {
	return capped(f.siblings[brandID], limit), nil
}

func (f *fakeStore) ProductCandidates(ctx context.Context, limit int) ([]models.Product, error) {
	out := make([]models.Product, 0, len(f.products))
	for _, id := range []string{"p1", "p2", "p3"} {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentContent(ctx context.Context, limit int) ([]models.Content, error) {
	return f.recent, nil
}

func (f *fakeStore) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	t, ok := f.topics[id]
	if !ok {
		return nil, errors.NewResourceNotFoundError("topic", id)
	}
	return &t, nil
}

func (f *fakeStore) SaveTopics(ctx context.Context, topics []models.Topic) ([]models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return nil, f.failSave
	}
	out := make([]models.Topic, len(topics))
	for i, t := range topics {
		f.nextID++
		t.ID = fmt.Sprintf("t-%d", f.nextID)
		t.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		out[i] = t
	}
	f.saved = append(f.saved, out)
	return out, nil
}

func (f *fakeStore) SaveContent(ctx context.Context, c models.Content) (models.Content, error) {
	if f.failSave != nil {
		return models.Content{}, f.failSave
	}
	f.nextID++
	c.ID = fmt.Sprintf("c-%d", f.nextID)
	f.content[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetContent(ctx context.Context, id string) (*models.Content, error) {
	c, ok := f.content[id]
	if !ok {
		return nil, errors.NewResourceNotFoundError("content", id)
	}
	return &c, nil
}

func (f *fakeStore) SetContentImage(ctx context.Context, id, img string) error {
	f.images[id] = img
	return nil
}

func capped(in []string, limit int) []string {
	if limit >= 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

// ==========================
// Mock completer
// ==========================

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockCompleter) GenerateImage(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type recordingNotifier struct {
	approved [][]models.Topic
	content  []models.Content
}

func (n *recordingNotifier) TopicsApproved(ctx context.Context, topics []models.Topic) error {
	n.approved = append(n.approved, topics)
	return nil
}

func (n *recordingNotifier) ContentGenerated(ctx context.Context, c models.Content) error {
	n.content = append(n.content, c)
	return nil
}
