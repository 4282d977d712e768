// internal/llm/openai.go
package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"content-workers/internal/common/config"
	"content-workers/internal/common/errors"
	commonhttp "content-workers/internal/common/http"
	"content-workers/internal/common/logger"
	"content-workers/internal/common/metrics"

	openai "github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = "You are a senior content strategist for a marketing team. " +
	"Follow the requested output format exactly."

// OpenAIClient implements Completer and ImageGenerator on the OpenAI API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	imageModel  string
	temperature float32
	jsonMode    bool
	timeout     time.Duration
	retry       RetryPolicy
	log         logger.Logger
}

func NewOpenAI(cfg config.OpenAIConfig, log logger.Logger) *OpenAIClient {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.HTTPClient = commonhttp.NewClient("openai", 0)

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		imageModel:  cfg.ImageModel,
		temperature: cfg.Temperature,
		jsonMode:    cfg.JSONMode,
		timeout:     config.GetDuration(cfg.Timeout),
		retry: RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  config.GetDuration(cfg.BaseDelay),
			MaxDelay:   config.GetDuration(cfg.MaxDelay),
		},
		log: log.With(map[string]interface{}{"component": "openai", "model": cfg.Model}),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	ccr := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: temperature,
	}
	if req.JSON && c.jsonMode {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var out string
	err := c.retry.Do(ctx, c.log, func(ctx context.Context) error {
		callCtx, cancel := c.withTimeout(ctx)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, ccr)
		if err != nil {
			stdErr := classify(err)
			metrics.CompletionAttempts.WithLabelValues("chat", string(stdErr.Code)).Inc()
			return stdErr
		}
		if len(resp.Choices) == 0 {
			metrics.CompletionAttempts.WithLabelValues("chat", string(errors.ErrCodeCompletionMalformed)).Inc()
			return errors.NewCompletionMalformedError("response contained no choices")
		}

		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			metrics.CompletionAttempts.WithLabelValues("chat", string(errors.ErrCodeCompletionMalformed)).Inc()
			return errors.NewCompletionMalformedError(fmt.Sprintf("empty content, finish_reason=%s", resp.Choices[0].FinishReason))
		}

		metrics.CompletionAttempts.WithLabelValues("chat", "ok").Inc()
		c.log.Debug("completion received", map[string]interface{}{
			"promptTokens":     resp.Usage.PromptTokens,
			"completionTokens": resp.Usage.CompletionTokens,
		})
		out = content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	var out string
	err := c.retry.Do(ctx, c.log, func(ctx context.Context) error {
		callCtx, cancel := c.withTimeout(ctx)
		defer cancel()

		resp, err := c.client.CreateImage(callCtx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          c.imageModel,
			N:              1,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			stdErr := classify(err)
			metrics.CompletionAttempts.WithLabelValues("image", string(stdErr.Code)).Inc()
			return stdErr
		}
		if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
			metrics.CompletionAttempts.WithLabelValues("image", string(errors.ErrCodeCompletionMalformed)).Inc()
			return errors.NewCompletionMalformedError("image response contained no data")
		}

		metrics.CompletionAttempts.WithLabelValues("image", "ok").Inc()
		out = resp.Data[0].B64JSON
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *OpenAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

var quotaMarkers = []string{"429", "rate limit", "rate_limit", "quota", "too many requests"}

var transientMarkers = []string{"timeout", "timed out", "connection reset", "connection refused", "eof", "unavailable", "bad gateway"}

// classify maps a provider error onto the pipeline taxonomy.
func classify(err error) *errors.StandardError {
	if stdErr, ok := errors.As(err); ok {
		return stdErr
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if isInsufficientQuota(apiErr) {
			stdErr := errors.NewUpstreamQuotaError(err)
			stdErr.Retryable = false
			return stdErr
		}
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errors.NewUpstreamQuotaError(err)
	case status >= 500, status == http.StatusRequestTimeout:
		return errors.NewUpstreamTransientError(err)
	case status >= 400:
		stdErr := errors.NewExternalServiceError("openai", err)
		stdErr.Retryable = false
		return stdErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.NewUpstreamTransientError(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.NewUpstreamTransientError(err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return errors.NewUpstreamQuotaError(err)
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return errors.NewUpstreamTransientError(err)
		}
	}

	return errors.NewUpstreamTransientError(err)
}

func isInsufficientQuota(apiErr *openai.APIError) bool {
	if apiErr.Type == "insufficient_quota" {
		return true
	}
	code, _ := apiErr.Code.(string)
	return code == "insufficient_quota"
}
