// internal/workers/content/approve-topics/handler.go
package approvetopics

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
	TaskType   = "content.approve-topics"
	ActivityID = "approve-topics"
)

type Service interface {
	ApproveTopics(ctx context.Context, items []generation.GeneratedItem, saveToDB bool) generation.Result
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

	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
		h.fail(ctx, client, job, errors.NewValidationError("job variables are not a JSON object: "+err.Error()))
		return
	}
	if h.validator != nil {
		if err := h.validator.ValidateMap(ActivityID, vars); err != nil {
			h.fail(ctx, client, job, err)
			return
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewValidationError(err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute keeps the topics marked complete or approved. Saving defaults to on.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	save := true
	if input.SaveToDB != nil {
		save = *input.SaveToDB
	}

	res := h.service.ApproveTopics(ctx, input.Topics, save)
	if !res.Success {
		if res.Err == nil {
			return nil, errors.NewInternalError(fmt.Errorf("approval failed: %s", res.Error))
		}
		return nil, res.Err
	}

	h.logger.Info("topics approved", map[string]interface{}{
		"approved": len(res.Topics),
		"skipped":  res.Skipped,
	})
	return &Output{
		ApprovedTopics: res.Topics,
		ApprovedCount:  len(res.Topics),
		SkippedCount:   res.Skipped,
	}, nil
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
