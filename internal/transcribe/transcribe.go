// Package transcribe runs speech-to-text inference on extracted audio.
//
// A Backend knows how to load a Model for a tier; the Engine memoizes loaded
// models per tier for the life of the process and converts every failure into
// an *Error carrying the message shown to the user.
package transcribe

import (
	"context"
	"fmt"

	"video-transcriber/internal/domain"
)

const msgPrefix = "Transcription error: "

// Model is a loaded speech model ready for inference.
type Model interface {
	Transcribe(ctx context.Context, audioPath string, lang domain.Language) (string, error)
}

// Backend loads models by tier.
type Backend interface {
	Name() string
	Load(ctx context.Context, tier domain.ModelTier) (Model, error)
}

// Error is a transcription failure with its user-facing message.
type Error struct {
	Tier    domain.ModelTier
	Message string
	Err     error
}

// Error returns the user-facing message.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(tier domain.ModelTier, err error) *Error {
	return &Error{
		Tier:    tier,
		Message: msgPrefix + err.Error(),
		Err:     err,
	}
}

// panicError wraps a recovered panic value.
type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
