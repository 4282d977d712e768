// internal/api/respond.go
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"content-workers/internal/common/errors"
	"content-workers/internal/generation"
)

const maxBodyBytes = 1 << 20

// errorBody is the failure shape every endpoint shares.
type errorBody struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	RawContent string `json:"raw_content,omitempty"`
}

// StatusFor maps a typed failure onto an HTTP status. Only the API layer knows about status codes.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInputInvalid, errors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case errors.ErrCodeResourceNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUpstreamQuota:
		return http.StatusTooManyRequests
	case errors.ErrCodeUpstreamTransient, errors.ErrCodeTimeout:
		return http.StatusServiceUnavailable
	case errors.ErrCodeParseFailed, errors.ErrCodeCompletionMalformed, errors.ErrCodeExternalService:
		return http.StatusBadGateway
	case errors.ErrCodeBusinessRule:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", map[string]interface{}{"error": err})
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	stdErr := errors.Normalize(err)
	status := StatusFor(stdErr.Code)
	if status >= 500 {
		s.log.Error("request error", map[string]interface{}{"errorCode": string(stdErr.Code), "details": stdErr.Details})
	}
	s.respondJSON(w, status, errorBody{Error: clientMessage(stdErr)})
}

func (s *Server) respondResult(w http.ResponseWriter, res generation.Result) {
	if res.Success {
		s.respondJSON(w, http.StatusOK, res)
		return
	}
	s.respondJSON(w, statusOf(res.Err), errorBody{Error: clientMessage(res.Err), RawContent: res.RawContent})
}

func (s *Server) respondContent(w http.ResponseWriter, res generation.ContentResult) {
	if res.Success {
		s.respondJSON(w, http.StatusOK, res)
		return
	}
	s.respondJSON(w, statusOf(res.Err), errorBody{Error: clientMessage(res.Err)})
}

func statusOf(err *errors.StandardError) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	return StatusFor(err.Code)
}

// clientMessage adds the details of caller mistakes to the message; upstream details stay in the logs.
func clientMessage(err *errors.StandardError) string {
	if err == nil {
		return "Unexpected error"
	}
	switch err.Code {
	case errors.ErrCodeInputInvalid, errors.ErrCodeValidationFailed:
		if err.Details != "" {
			return err.Message + ": " + err.Details
		}
	}
	return err.Message
}

// decode validates the body against the activity's schema, then unmarshals it into dest.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, activityID string, dest interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.NewInputError("request body could not be read: " + err.Error())
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if s.validator != nil {
		if err := s.validator.ValidateJSON(activityID, body); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.NewInputError("malformed JSON body: " + err.Error())
	}
	return nil
}
