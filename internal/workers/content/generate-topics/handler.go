// internal/workers/content/generate-topics/handler.go
package generatetopics

import (
	"context"
	"encoding/json"
	"fmt"

	"content-workers/internal/common/errors"
	"content-workers/internal/common/logger"
	"content-workers/internal/common/metrics"
	"content-workers/internal/common/validation"
	"content-workers/internal/generation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "content.generate-topics"
	ActivityID = "generate-topics"
)

// Service is the part of the generation pipeline this worker drives.
type Service interface {
	GenerateTopics(ctx context.Context, req generation.TopicRequest) generation.Result
}

type Handler struct {
	config       *Config
	service      Service
	validator    *validation.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service Service, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
		return nil, errors.NewValidationError("job variables are not a JSON object: " + err.Error())
	}
	if h.validator != nil {
		if err := h.validator.ValidateMap(ActivityID, vars); err != nil {
			return nil, err
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	return &input, nil
}

// Execute runs one generation. A parse failure carries the model's raw text in the error metadata.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ProductID == "" && input.ProductQuery == "" {
		return nil, errors.NewInputError("either product_id or product_query must be provided")
	}

	count := input.Count
	if count == 0 {
		count = h.config.DefaultCount
	}

	res := h.service.GenerateTopics(ctx, generation.TopicRequest{
		ProductID:         input.ProductID,
		ProductQuery:      input.ProductQuery,
		BrandID:           input.BrandID,
		Prompt:            input.Prompt,
		Count:             count,
		UsePreviousTopics: input.UsePreviousTopics,
		MaxPreviousTopics: input.MaxPreviousTopics,
	})
	if !res.Success {
		if res.Err == nil {
			return nil, errors.NewInternalError(fmt.Errorf("generation failed: %s", res.Error))
		}
		if res.RawContent != "" {
			res.Err.WithMetadata("raw_content", res.RawContent)
		}
		return nil, res.Err
	}

	h.logger.Info("topics generated", map[string]interface{}{"count": len(res.Topics)})
	return &Output{Topics: res.Topics, TopicCount: len(res.Topics)}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
