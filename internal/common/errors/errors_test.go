package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type captureLogger struct {
	messages []string
	fields   []map[string]interface{}
}

func (l *captureLogger) Error(msg string, fields map[string]interface{}) {
	l.messages = append(l.messages, msg)
	l.fields = append(l.fields, fields)
}

func jobWithRetries(retries int32) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: "content.generate-topics", Retries: retries}}
}

// ==========================
// Taxonomy
// ==========================

func TestConstructors_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"input", NewInputError("product_id or query required"), ErrCodeInputInvalid, false},
		{"quota", NewUpstreamQuotaError(fmt.Errorf("429 Too Many Requests")), ErrCodeUpstreamQuota, true},
		{"transient", NewUpstreamTransientError(fmt.Errorf("connection reset")), ErrCodeUpstreamTransient, true},
		{"malformed", NewCompletionMalformedError("no choices"), ErrCodeCompletionMalformed, false},
		{"parse", NewParseError("no json object"), ErrCodeParseFailed, false},
		{"persistence", NewPersistenceError(fmt.Errorf("tx aborted")), ErrCodePersistenceFailed, true},
		{"lookup", NewContextLookupError(fmt.Errorf("timeout")), ErrCodeContextLookupFailed, true},
		{"not found", NewResourceNotFoundError("product", "id=p1"), ErrCodeResourceNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestParseError_Message(t *testing.T) {
	err := NewParseError("unexpected end of input")
	assert.Equal(t, "could not parse model response as JSON", err.Message)
	assert.Equal(t, "StandardError[PARSE_FAILED]: could not parse model response as JSON", err.Error())
}

func TestAsAndCodeOf_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("generate topics: %w", NewUpstreamQuotaError(stderrors.New("rate limit")))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeUpstreamQuota, stdErr.Code)
	assert.Equal(t, ErrCodeUpstreamQuota, CodeOf(wrapped))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))

	n := Normalize(stderrors.New("plain"))
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.Equal(t, "plain", n.Details)
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewUpstreamTransientError(stderrors.New("502")).WithMetadata("model", "gpt-4-turbo")
	bpmn := ConvertToBPMNError(stdErr)

	assert.Equal(t, "UPSTREAM_UNAVAILABLE", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	assert.True(t, bpmn.Retryable)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", vars["errorCode"])
	assert.Equal(t, "UPSTREAM_TRANSIENT", vars["originalErrorCode"])
	assert.Equal(t, "gpt-4-turbo", vars["model"])

	assert.Equal(t, 0, ConvertToBPMNError(NewParseError("x")).Retries)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeUpstreamQuota))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeParseFailed))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodePersistenceFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInputInvalid))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeResourceNotFound))
	assert.False(t, IsRetryableErrorCode(ErrCodeValidationFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeUpstreamQuota))
}

// ==========================
// Job error handler
// ==========================

func TestErrorHandler_Decide(t *testing.T) {
	h := NewErrorHandler(&captureLogger{})

	t.Run("retryable with retries left", func(t *testing.T) {
		d := h.Decide(jobWithRetries(3), NewUpstreamTransientError(stderrors.New("eof")))
		assert.False(t, d.Throw)
		assert.Equal(t, 2, d.Retries)
	})

	t.Run("retryable on last attempt throws", func(t *testing.T) {
		d := h.Decide(jobWithRetries(1), NewPersistenceError(stderrors.New("deadlock")))
		assert.True(t, d.Throw)
		assert.Equal(t, "PERSISTENCE_FAILED", d.Error.Code)
	})

	t.Run("non retryable throws", func(t *testing.T) {
		d := h.Decide(jobWithRetries(3), NewInputError("missing product_id"))
		assert.True(t, d.Throw)
		assert.Equal(t, "INPUT_INVALID", d.Error.Code)
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		d := h.Decide(jobWithRetries(3), context.Canceled)
		assert.True(t, d.Throw)
		assert.Equal(t, string(ErrCodeInternal), d.Error.Code)
	})
}
