package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/jobs"
	"video-transcriber/internal/pipeline"
)

// ErrorCode is a machine-readable API error code.
type ErrorCode string

const (
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeRunInProgress ErrorCode = "RUN_IN_PROGRESS"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// APIError is the error type rendered by the JSON API.
type APIError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Hint       string         `json:"hint,omitempty"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Error returns the string representation of the error.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *APIError) Unwrap() error { return e.Cause }

// ErrorResponse is the JSON structure returned to clients.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

func invalidInput(message string, details map[string]any) *APIError {
	return &APIError{
		Code:       ErrCodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

func notFound(resource, id string) *APIError {
	return &APIError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"resource": resource, "id": id},
	}
}

// statusForKind maps a failure kind to its HTTP status.
func statusForKind(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureEncoderUnavailable:
		return http.StatusServiceUnavailable
	case domain.FailureUploadRejected:
		return http.StatusBadRequest
	case domain.FailureExtractionTimeout:
		return http.StatusGatewayTimeout
	case domain.FailureExtractionProcessError:
		return http.StatusUnprocessableEntity
	case domain.FailureTranscription:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// toAPIError converts any handler error into an *APIError.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if stageErr, ok := pipeline.AsStageError(err); ok {
		return &APIError{
			Code:       ErrorCode(stageErr.Kind),
			Message:    stageErr.Message,
			Hint:       stageErr.Hint,
			HTTPStatus: statusForKind(stageErr.Kind),
			Details:    map[string]any{"stage": stageErr.Stage},
			Cause:      err,
		}
	}
	if errors.Is(err, jobs.ErrRunInProgress) {
		return &APIError{
			Code:       ErrCodeRunInProgress,
			Message:    "A transcription is already running in this session.",
			HTTPStatus: http.StatusConflict,
			Cause:      err,
		}
	}
	return &APIError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred.",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      err,
	}
}

// respondWithError writes err as a JSON error envelope.
func respondWithError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	c.JSON(apiErr.HTTPStatus, ErrorResponse{Error: apiErr})
}

// respondOK sends a 200 response wrapping data.
func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
