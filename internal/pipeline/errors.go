package pipeline

import (
	"errors"
	"fmt"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/media"
	"video-transcriber/internal/transcribe"
)

const (
	msgEncoderUnavailable = "FFmpeg not found"
	msgUnexpected         = "Unexpected error: "
	msgTranscription      = "Transcription error: "
)

// StageError is a stage-aware failure carrying the message shown to the user.
type StageError struct {
	Kind    domain.FailureKind `json:"kind"`
	Stage   domain.RunStatus   `json:"stage"`
	Message string             `json:"message"`
	Hint    string             `json:"hint,omitempty"`
	Err     error              `json:"-"`
}

// Error formats stage failures for logs and UI.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsStageError extracts a *StageError from err.
func AsStageError(err error) (*StageError, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr, true
	}
	return nil, false
}

func encoderUnavailable(status domain.EncoderStatus) *StageError {
	return &StageError{
		Kind:    domain.FailureEncoderUnavailable,
		Stage:   domain.RunStatusEncoderCheck,
		Message: msgEncoderUnavailable,
		Hint:    status.Hint,
	}
}

func uploadRejected(message string) *StageError {
	return &StageError{
		Kind:    domain.FailureUploadRejected,
		Stage:   domain.RunStatusAwaitingUpload,
		Message: message,
	}
}

func workspaceFailure(err error) *StageError {
	return &StageError{
		Kind:    domain.FailureWorkspace,
		Stage:   domain.RunStatusExtracting,
		Message: msgUnexpected + err.Error(),
		Err:     err,
	}
}

// extractionFailure keeps the extractor's classification and message.
func extractionFailure(err error) *StageError {
	var xErr *media.ExtractError
	if errors.As(err, &xErr) {
		return &StageError{
			Kind:    xErr.Kind,
			Stage:   domain.RunStatusExtracting,
			Message: xErr.Message,
			Err:     err,
		}
	}
	return &StageError{
		Kind:    domain.FailureExtractionUnexpectedError,
		Stage:   domain.RunStatusExtracting,
		Message: msgUnexpected + err.Error(),
		Err:     err,
	}
}

func transcriptionFailure(err error) *StageError {
	message := msgTranscription + err.Error()
	var tErr *transcribe.Error
	if errors.As(err, &tErr) {
		message = tErr.Message
	}
	return &StageError{
		Kind:    domain.FailureTranscription,
		Stage:   domain.RunStatusTranscribing,
		Message: message,
		Err:     err,
	}
}
