// internal/generation/service.go
package generation

import (
	"context"
	"fmt"
	"time"

	"content-workers/internal/common/config"
	"content-workers/internal/common/errors"
	"content-workers/internal/common/logger"
	"content-workers/internal/common/metrics"
	"content-workers/internal/common/observability"
	"content-workers/internal/llm"
	"content-workers/internal/models"
)

// TopicStore persists accepted topics in a single transaction.
type TopicStore interface {
	GetTopic(ctx context.Context, id string) (*models.Topic, error)
	SaveTopics(ctx context.Context, topics []models.Topic) ([]models.Topic, error)
}

type ContentStore interface {
	SaveContent(ctx context.Context, c models.Content) (models.Content, error)
	GetContent(ctx context.Context, id string) (*models.Content, error)
	SetContentImage(ctx context.Context, id, imageBase64 string) error
}

// ContentIndexer makes stored content searchable. Optional.
type ContentIndexer interface {
	IndexContent(ctx context.Context, c models.Content) error
}

// Notifier announces approvals and new content. Optional.
type Notifier interface {
	TopicsApproved(ctx context.Context, topics []models.Topic) error
	ContentGenerated(ctx context.Context, c models.Content) error
}

// Deps are the collaborators of the Service. Indexer, Notifier, Images and Observability may be nil.
type Deps struct {
	Assembler     *Assembler
	Retriever     *Retriever
	Completer     llm.Completer
	Images        llm.ImageGenerator
	Topics        TopicStore
	Content       ContentStore
	Indexer       ContentIndexer
	Notifier      Notifier
	Observability *observability.Observability
	Config        config.GenerationConfig
	Logger        logger.Logger
}

// Service runs the generation pipeline. Its methods report failures on the returned result;
// they never panic on provider or parse errors.
type Service struct {
	assembler *Assembler
	retriever *Retriever
	completer llm.Completer
	images    llm.ImageGenerator
	topics    TopicStore
	content   ContentStore
	indexer   ContentIndexer
	notifier  Notifier
	obs       *observability.Observability
	cfg       config.GenerationConfig
	log       logger.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		assembler: d.Assembler,
		retriever: d.Retriever,
		completer: d.Completer,
		images:    d.Images,
		topics:    d.Topics,
		content:   d.Content,
		indexer:   d.Indexer,
		notifier:  d.Notifier,
		obs:       d.Observability,
		cfg:       d.Config,
		log:       d.Logger.With(map[string]interface{}{"component": "generation"}),
	}
}

// ==========================
// Topics
// ==========================

// GenerateTopics produces count topics. One topic uses the plain-title path, optionally refined by the
// request prompt; more use the JSON path through the recovery parser.
func (s *Service) GenerateTopics(ctx context.Context, req TopicRequest) Result {
	ctx, span := observability.StartSpan(ctx, "generation.GenerateTopics", map[string]string{"productId": req.ProductID})
	defer span.End()

	start := time.Now()
	count := req.Count
	if count == 0 {
		count = 1
	}

	var res Result
	if count < 0 {
		res = failResult(errors.NewInputError("count must be at least 1"), "")
	} else if count == 1 {
		res = s.singleTopic(ctx, req)
	} else {
		res = s.multiTopic(ctx, req, count)
	}

	s.observe(ctx, "topics", start, res.Code(), len(res.Topics))
	return res
}

// GenerateBrandProductTopics produces topics for a product in its brand's context and, when saveToDB is
// set, stores them as pending. A storage failure keeps the generated topics and sets PersistenceError.
func (s *Service) GenerateBrandProductTopics(ctx context.Context, req TopicRequest, saveToDB bool) Result {
	ctx, span := observability.StartSpan(ctx, "generation.GenerateBrandProductTopics", map[string]string{
		"productId": req.ProductID,
		"brandId":   req.BrandID,
	})
	defer span.End()

	start := time.Now()
	count := req.Count
	if count == 0 {
		count = 3
	}

	var res Result
	switch {
	case req.ProductID == "":
		res = failResult(errors.NewInputError("product_id is required"), "")
	case count < 1:
		res = failResult(errors.NewInputError("count must be at least 1"), "")
	default:
		req.ProductQuery = ""
		res = s.multiTopic(ctx, req, count)
	}

	if res.Success && saveToDB {
		res = s.persist(ctx, res, models.TopicStatusPending)
	}

	s.observe(ctx, "brand_product_topics", start, res.Code(), len(res.Topics))
	return res
}

// ApproveTopics stores the reviewed items whose status is complete or approved, as approved. Other
// items are skipped and counted. With saveToDB unset the items are echoed back unchanged.
func (s *Service) ApproveTopics(ctx context.Context, items []GeneratedItem, saveToDB bool) Result {
	ctx, span := observability.StartSpan(ctx, "generation.ApproveTopics", nil)
	defer span.End()

	start := time.Now()
	if !saveToDB {
		res := okResult(items)
		s.observe(ctx, "approve_topics", start, res.Code(), len(res.Topics))
		return res
	}

	accepted := make([]GeneratedItem, 0, len(items))
	for _, it := range items {
		if it.Status.IsApprovable() && it.Title != "" {
			accepted = append(accepted, it)
		}
	}
	skipped := len(items) - len(accepted)

	var res Result
	if len(accepted) == 0 {
		res = okResult(nil)
	} else {
		saved, err := s.saveItems(ctx, accepted, models.TopicStatusApproved)
		if err != nil {
			res = failResult(err, "")
		} else {
			res = okResult(saved)
			s.notifyApproved(ctx, saved)
		}
	}
	res.Skipped = skipped

	s.observe(ctx, "approve_topics", start, res.Code(), len(res.Topics))
	return res
}

func (s *Service) singleTopic(ctx context.Context, req TopicRequest) Result {
	contextBlock, err := s.assembler.Assemble(ctx, s.contextInput(req))
	if err != nil {
		return failResult(err, "")
	}

	prompt, err := SingleTopicPrompt(contextBlock)
	if err != nil {
		return failResult(errors.NewInternalError(err), "")
	}

	raw, err := s.completer.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return failResult(err, "")
	}

	title := cleanTitle(raw)
	if title == "" {
		return failResult(errors.NewCompletionMalformedError("model returned an empty title"), raw)
	}

	if req.Prompt != "" {
		refinePrompt, err := RefinePrompt(title, req.Prompt)
		if err != nil {
			return failResult(errors.NewInternalError(err), "")
		}
		refined, err := s.completer.Complete(ctx, llm.Request{Prompt: refinePrompt})
		if err != nil {
			return failResult(err, "")
		}
		if t := cleanTitle(refined); t != "" {
			title = t
		}
	}

	item := s.stamp(GeneratedItem{Title: title, SEOKeywords: []string{}}, req)
	res := okResult([]GeneratedItem{item})
	res.Topic = &item
	return res
}

func (s *Service) multiTopic(ctx context.Context, req TopicRequest, count int) Result {
	contextBlock, err := s.assembler.Assemble(ctx, s.contextInput(req))
	if err != nil {
		return failResult(err, "")
	}

	prompt, err := MultiTopicPrompt(contextBlock, req.Prompt, count)
	if err != nil {
		return failResult(errors.NewInternalError(err), "")
	}

	raw, err := s.completer.Complete(ctx, llm.Request{Prompt: prompt, JSON: true})
	if err != nil {
		return failResult(err, "")
	}

	outcome := RecoverTopics(raw)
	metrics.RecoveryStage.WithLabelValues(string(outcome.Stage)).Inc()
	if outcome.Err != nil {
		s.log.Warn("model response could not be parsed", map[string]interface{}{
			"stage":   string(outcome.Stage),
			"details": outcome.Err.Details,
		})
		return failResult(outcome.Err, outcome.Raw)
	}

	items := make([]GeneratedItem, len(outcome.Items))
	for i, it := range outcome.Items {
		items[i] = s.stamp(it, req)
	}
	return okResult(items)
}

// stamp attaches request metadata to a generated item.
func (s *Service) stamp(it GeneratedItem, req TopicRequest) GeneratedItem {
	it.ProductID = req.ProductID
	it.BrandID = req.BrandID
	it.Prompt = req.Prompt
	it.Status = models.TopicStatusDraft
	return it
}

func (s *Service) persist(ctx context.Context, res Result, status models.TopicStatus) Result {
	saved, err := s.saveItems(ctx, res.Topics, status)
	if err != nil {
		s.log.Error("generated topics could not be saved", map[string]interface{}{"error": err, "count": len(res.Topics)})
		res.PersistenceError = errors.Normalize(err).Message
		return res
	}
	res.Topics = saved
	return res
}

func (s *Service) saveItems(ctx context.Context, items []GeneratedItem, status models.TopicStatus) ([]GeneratedItem, error) {
	rows := make([]models.Topic, len(items))
	for i, it := range items {
		rows[i] = it.toTopic(status)
	}

	saved, err := s.topics.SaveTopics(ctx, rows)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewPersistenceError(err)
	}
	if len(saved) != len(items) {
		return nil, errors.NewPersistenceError(fmt.Errorf("saved %d of %d topics", len(saved), len(items)))
	}

	out := make([]GeneratedItem, len(items))
	for i := range items {
		out[i] = items[i].withSaved(saved[i])
	}
	return out, nil
}

func (s *Service) contextInput(req TopicRequest) ContextInput {
	usePrevious := true
	if req.UsePreviousTopics != nil {
		usePrevious = *req.UsePreviousTopics
	}

	maxPrevious := s.cfg.DefaultPreviousTopics
	if req.MaxPreviousTopics != nil {
		maxPrevious = *req.MaxPreviousTopics
	}
	if s.cfg.MaxPreviousTopics > 0 && maxPrevious > s.cfg.MaxPreviousTopics {
		maxPrevious = s.cfg.MaxPreviousTopics
	}

	return ContextInput{
		ProductID:         req.ProductID,
		ProductQuery:      req.ProductQuery,
		BrandID:           req.BrandID,
		UsePreviousTopics: usePrevious,
		MaxPreviousTopics: maxPrevious,
	}
}

func (s *Service) notifyApproved(ctx context.Context, items []GeneratedItem) {
	if s.notifier == nil {
		return
	}
	topics := make([]models.Topic, len(items))
	for i, it := range items {
		topics[i] = it.toTopic(it.Status)
		topics[i].ID = it.ID
	}
	if err := s.notifier.TopicsApproved(ctx, topics); err != nil {
		s.log.Warn("approval notification failed", map[string]interface{}{"error": err})
	}
}

// ==========================
// Content
// ==========================

// GenerateContent writes a markdown article for a stored topic or a free title. Related content comes
// from the search index, or keyword ranking over recent content.
func (s *Service) GenerateContent(ctx context.Context, req ContentRequest) ContentResult {
	ctx, span := observability.StartSpan(ctx, "generation.GenerateContent", map[string]string{"topicId": req.TopicID})
	defer span.End()

	start := time.Now()
	res := s.generateContent(ctx, req)
	n := 0
	if res.Success {
		n = 1
	}
	s.observe(ctx, "content", start, res.Code(), n)
	return res
}

func (s *Service) generateContent(ctx context.Context, req ContentRequest) ContentResult {
	title := req.TopicTitle
	if title == "" && req.TopicID != "" {
		topic, err := s.topics.GetTopic(ctx, req.TopicID)
		if err != nil {
			if errors.CodeOf(err) == errors.ErrCodeResourceNotFound {
				return failContent(err)
			}
			return failContent(errors.NewContextLookupError(err))
		}
		title = topic.Title
	}
	if title == "" {
		return failContent(errors.NewInputError("either topic_id or topic_title must be provided"))
	}

	var related []string
	if req.WithRelated == nil || *req.WithRelated {
		found, err := s.retriever.RelatedContent(ctx, title, s.cfg.RelatedContentLimit)
		if err != nil {
			s.log.Warn("related content lookup failed, writing without it", map[string]interface{}{"error": err})
		}
		related = found
	}

	prompt, err := ArticlePrompt(title, related)
	if err != nil {
		return failContent(errors.NewInternalError(err))
	}

	body, err := s.completer.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return failContent(err)
	}

	content := models.Content{Title: title, Body: body, TopicID: req.TopicID, CreatedAt: time.Now().UTC()}
	saved, err := s.content.SaveContent(ctx, content)
	if err != nil {
		s.log.Error("generated content could not be saved", map[string]interface{}{"error": err})
		return ContentResult{
			Success:          true,
			Content:          &content,
			PersistenceError: errors.NewPersistenceError(err).Message,
		}
	}

	if s.indexer != nil {
		if err := s.indexer.IndexContent(ctx, saved); err != nil {
			s.log.Warn("content indexing failed", map[string]interface{}{"contentId": saved.ID, "error": err})
		}
	}
	if s.notifier != nil {
		if err := s.notifier.ContentGenerated(ctx, saved); err != nil {
			s.log.Warn("content notification failed", map[string]interface{}{"contentId": saved.ID, "error": err})
		}
	}

	return ContentResult{Success: true, Content: &saved}
}

// IllustrateContent generates a header image for stored content and saves it on the row.
func (s *Service) IllustrateContent(ctx context.Context, contentID, style string) ContentResult {
	ctx, span := observability.StartSpan(ctx, "generation.IllustrateContent", map[string]string{"contentId": contentID})
	defer span.End()

	start := time.Now()
	res := s.illustrate(ctx, contentID, style)
	s.observe(ctx, "image", start, res.Code(), 0)
	return res
}

func (s *Service) illustrate(ctx context.Context, contentID, style string) ContentResult {
	if s.images == nil {
		return failContent(errors.NewBusinessRuleError("Image generation is not configured", ""))
	}

	content, err := s.content.GetContent(ctx, contentID)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeResourceNotFound {
			return failContent(err)
		}
		return failContent(errors.NewContextLookupError(err))
	}

	prompt, err := ImagePrompt(content.Title, style)
	if err != nil {
		return failContent(errors.NewInternalError(err))
	}

	img, err := s.images.GenerateImage(ctx, prompt)
	if err != nil {
		return failContent(err)
	}

	if err := s.content.SetContentImage(ctx, contentID, img); err != nil {
		return failContent(errors.NewPersistenceError(err))
	}

	content.ImageBase64 = img
	return ContentResult{Success: true, Content: content}
}

func (s *Service) observe(ctx context.Context, operation string, start time.Time, outcome string, items int) {
	elapsed := time.Since(start)
	metrics.GenerationRequests.WithLabelValues(operation, outcome).Inc()
	metrics.GenerationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	s.obs.RecordJobProcessed(ctx, operation, outcome)
	s.obs.RecordJobDuration(ctx, operation, elapsed, outcome)
	s.obs.RecordItems(ctx, operation, items)
}
