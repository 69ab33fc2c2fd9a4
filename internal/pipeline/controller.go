// Package pipeline drives one upload through encoder check, audio extraction
// and transcription, halting on the first failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/logging"
	"video-transcriber/internal/media"
	"video-transcriber/internal/telemetry"
	"video-transcriber/internal/workspace"
)

const audioFileName = "audio.mp3"

// EncoderProber reports whether the media encoder is usable.
type EncoderProber interface {
	Probe(ctx context.Context) domain.EncoderStatus
}

// AudioExtractor strips the audio track of a video into an mp3 file.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, audioPath, encoderPath string) error
}

// Transcriber turns audio into text with the model of a tier.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, tier domain.ModelTier, lang domain.Language) (string, error)
}

// Config limits what a run accepts.
type Config struct {
	WorkspaceRoot  string
	MaxUploadBytes int64
	Extensions     []string
}

// Upload is the video submitted by the user.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

// Options parameterize one run.
type Options struct {
	Tier     domain.ModelTier
	Language domain.Language
	OnStage  func(status domain.RunStatus)
}

// Controller runs the transcription pipeline.
type Controller struct {
	cfg          Config
	prober       EncoderProber
	extractor    AudioExtractor
	transcriber  Transcriber
	newWorkspace func(root string) (*workspace.Workspace, error)
	metrics      *telemetry.Metrics
	log          *logging.Logger
}

// New creates a controller backed by real workspaces.
func New(cfg Config, prober EncoderProber, extractor AudioExtractor, transcriber Transcriber, metrics *telemetry.Metrics, log *logging.Logger) *Controller {
	return NewForTests(cfg, prober, extractor, transcriber, workspace.New, metrics, log)
}

// NewForTests creates a controller with an injectable workspace factory.
func NewForTests(
	cfg Config,
	prober EncoderProber,
	extractor AudioExtractor,
	transcriber Transcriber,
	newWorkspace func(root string) (*workspace.Workspace, error),
	metrics *telemetry.Metrics,
	log *logging.Logger,
) *Controller {
	if log == nil {
		log = logging.Nop()
	}
	cfg.Extensions = lo.Map(cfg.Extensions, func(ext string, _ int) string {
		return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	})
	return &Controller{
		cfg:          cfg,
		prober:       prober,
		extractor:    extractor,
		transcriber:  transcriber,
		newWorkspace: newWorkspace,
		metrics:      metrics,
		log:          log.WithComponent("pipeline"),
	}
}

// Extensions returns the accepted upload extensions.
func (c *Controller) Extensions() []string {
	return append([]string(nil), c.cfg.Extensions...)
}

// MaxUploadBytes returns the upload size limit; zero means unlimited.
func (c *Controller) MaxUploadBytes() int64 {
	return c.cfg.MaxUploadBytes
}

// CheckEncoder returns the memoized encoder status; it gates the upload form.
func (c *Controller) CheckEncoder(ctx context.Context) domain.EncoderStatus {
	return c.prober.Probe(ctx)
}

// ValidateUpload checks the declared name and size before any work starts.
func (c *Controller) ValidateUpload(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return uploadRejected("No file selected")
	}
	ext := Extension(name)
	if !lo.Contains(c.cfg.Extensions, ext) {
		return uploadRejected(fmt.Sprintf(
			"Unsupported file type %q. Supported formats: %s",
			ext, strings.ToUpper(strings.Join(c.cfg.Extensions, ", ")),
		))
	}
	if c.cfg.MaxUploadBytes > 0 && size > c.cfg.MaxUploadBytes {
		return uploadRejected(fmt.Sprintf("File is too large (%s, limit %s)", SizeLabel(size), SizeLabel(c.cfg.MaxUploadBytes)))
	}
	return nil
}

// Run executes encoder check, save, extraction and transcription for upload.
// Every failure is returned as a *StageError; the workspace is always removed.
func (c *Controller) Run(ctx context.Context, upload Upload, opts Options) (result Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run",
		attribute.String("model", string(opts.Tier)),
		attribute.String("language", string(opts.Language)),
	)
	defer span.End()

	start := time.Now()
	c.metrics.RecordRunStart(ctx)
	defer func() {
		status := string(domain.RunStatusDone)
		if err != nil {
			status = string(domain.RunStatusFailed)
			if stageErr, ok := AsStageError(err); ok {
				c.metrics.RecordFailure(ctx, string(stageErr.Kind))
				span.SetAttributes(attribute.String("failure.kind", string(stageErr.Kind)))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.metrics.RecordRunEnd(ctx, string(opts.Tier), status, time.Since(start))
	}()

	emit(opts.OnStage, domain.RunStatusEncoderCheck)
	encoder := c.prober.Probe(ctx)
	if !encoder.Available {
		c.log.Warn("encoder unavailable", logging.Fields("tried", strings.Join(encoder.Tried, ",")))
		return Result{}, encoderUnavailable(encoder)
	}

	emit(opts.OnStage, domain.RunStatusAwaitingUpload)
	if !opts.Tier.Valid() {
		return Result{}, uploadRejected(fmt.Sprintf("Unknown model %q", opts.Tier))
	}
	if !opts.Language.Valid() {
		return Result{}, uploadRejected(fmt.Sprintf("Unknown language %q", opts.Language))
	}
	if upload.Body == nil {
		return Result{}, uploadRejected("No file selected")
	}
	if err := c.ValidateUpload(upload.Name, upload.Size); err != nil {
		return Result{}, err
	}

	ws, err := c.newWorkspace(c.cfg.WorkspaceRoot)
	if err != nil {
		return Result{}, workspaceFailure(err)
	}
	defer func() {
		if closeErr := ws.Close(); closeErr != nil {
			c.log.Warn("workspace cleanup failed", logging.Fields("dir", ws.Dir(), "error", closeErr))
		}
	}()

	saved, err := ws.SaveUpload(upload.Name, upload.Body)
	if err != nil {
		return Result{}, workspaceFailure(err)
	}
	if c.cfg.MaxUploadBytes > 0 && saved.Size > c.cfg.MaxUploadBytes {
		return Result{}, uploadRejected(fmt.Sprintf("File is too large (%s, limit %s)", SizeLabel(saved.Size), SizeLabel(c.cfg.MaxUploadBytes)))
	}
	c.metrics.RecordUpload(ctx, saved.Size)
	c.log.Info("upload saved", logging.Fields(
		"file", saved.Name,
		"size", SizeLabel(saved.Size),
		"fingerprint", saved.Fingerprint,
		"model", string(opts.Tier),
		"language", string(opts.Language),
	))

	emit(opts.OnStage, domain.RunStatusExtracting)
	audioPath := ws.Path(audioFileName)
	if err := c.stage(ctx, domain.RunStatusExtracting, func(ctx context.Context) error {
		return c.extractor.Extract(ctx, saved.Path, audioPath, encoder.Path)
	}); err != nil {
		return Result{}, extractionFailure(err)
	}

	emit(opts.OnStage, domain.RunStatusTranscribing)
	var transcript string
	if err := c.stage(ctx, domain.RunStatusTranscribing, func(ctx context.Context) error {
		var tErr error
		transcript, tErr = c.transcriber.Transcribe(ctx, audioPath, opts.Tier, opts.Language)
		return tErr
	}); err != nil {
		return Result{}, transcriptionFailure(err)
	}

	result = newResult(upload.Name, saved.Size, saved.Fingerprint, transcript, opts.Tier, opts.Language)
	result.AudioNote = media.SuccessMessage()
	emit(opts.OnStage, domain.RunStatusDone)
	c.log.Info("run finished", logging.Fields(
		"file", saved.Name,
		"words", result.WordCount,
		"chars", result.CharCount,
		"duration_ms", time.Since(start).Milliseconds(),
	))
	return result, nil
}

// stage runs fn inside a span and records its duration.
func (c *Controller) stage(ctx context.Context, status domain.RunStatus, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "pipeline."+string(status))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		markSpan(span, err)
	}
	c.metrics.RecordStage(ctx, string(status), outcome, time.Since(start))
	if err != nil {
		c.log.Warn("stage failed", logging.Fields("stage", string(status), "error", err))
	}
	return err
}

func markSpan(span trace.Span, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		span.SetAttributes(attribute.Bool("timeout", true))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func emit(cb func(domain.RunStatus), status domain.RunStatus) {
	if cb != nil {
		cb(status)
	}
}
