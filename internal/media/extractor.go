// Package media turns uploaded videos into compressed audio with ffmpeg.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/logging"
	"video-transcriber/internal/runner"
)

const (
	// DefaultTimeout is the wall-clock budget for one extraction.
	DefaultTimeout = 5 * time.Minute

	audioCodec   = "mp3"
	audioBitrate = "192k"

	msgTimeout    = "Timeout: the video is too long to process"
	msgProcess    = "Error extracting audio: "
	msgUnexpected = "Unexpected error: "
)

// ExtractError is a classified extraction failure with its user-facing message.
type ExtractError struct {
	Kind    domain.FailureKind
	Message string
	Log     runner.Result
	Err     error
}

// Error returns the user-facing message.
func (e *ExtractError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ExtractError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Extractor strips the video stream and re-encodes audio to mp3.
type Extractor struct {
	runner  runner.Runner
	timeout time.Duration
	log     *logging.Logger
}

// NewExtractor builds an extractor using real process execution.
func NewExtractor(timeout time.Duration, log *logging.Logger) *Extractor {
	return NewExtractorForTests(runner.NewExec(), timeout, log)
}

// NewExtractorForTests creates an extractor with an injectable runner.
func NewExtractorForTests(run runner.Runner, timeout time.Duration, log *logging.Logger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Extractor{
		runner:  run,
		timeout: timeout,
		log:     log.WithComponent("extractor"),
	}
}

// Extract writes the audio track of videoPath to audioPath.
// On failure the returned *ExtractError carries the message to show; audioPath
// must not be read.
func (e *Extractor) Extract(ctx context.Context, videoPath, audioPath, encoderPath string) error {
	if strings.TrimSpace(encoderPath) == "" {
		return &ExtractError{
			Kind:    domain.FailureExtractionUnexpectedError,
			Message: msgUnexpected + "encoder path is empty",
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := BuildArgs(videoPath, audioPath)
	res, err := e.runner.Run(runCtx, encoderPath, args...)
	if err == nil {
		e.log.Debug("audio extracted", logging.Fields("output", audioPath, "duration_ms", res.Duration.Milliseconds()))
		return nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.log.Warn("extraction timed out", logging.Fields("timeout", e.timeout.String(), "input", videoPath))
		return &ExtractError{
			Kind:    domain.FailureExtractionTimeout,
			Message: msgTimeout,
			Log:     res,
			Err:     err,
		}
	}

	if res.Exited || res.ExitCode > 0 {
		e.log.Warn("encoder exited with error", logging.Fields("exit_code", res.ExitCode, "stderr", res.Stderr))
		return &ExtractError{
			Kind:    domain.FailureExtractionProcessError,
			Message: msgProcess + res.Stderr,
			Log:     res,
			Err:     err,
		}
	}

	e.log.Error("encoder could not run", logging.Fields("error", err, "encoder", encoderPath))
	return &ExtractError{
		Kind:    domain.FailureExtractionUnexpectedError,
		Message: msgUnexpected + err.Error(),
		Log:     res,
		Err:     err,
	}
}

// BuildArgs returns the fixed ffmpeg arguments for mp3 extraction.
func BuildArgs(videoPath, audioPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", audioCodec,
		"-ab", audioBitrate,
		"-loglevel", "error",
		audioPath,
	}
}

// SuccessMessage is shown after a successful extraction.
func SuccessMessage() string {
	return fmt.Sprintf("Audio extracted successfully (%s, %s)", audioCodec, audioBitrate)
}
