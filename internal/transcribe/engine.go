package transcribe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/logging"
)

// modelCell guards the model of one tier. Only successful loads are kept.
type modelCell struct {
	mu    sync.Mutex
	model Model
}

// Engine resolves models per tier and runs inference.
type Engine struct {
	backend Backend
	log     *logging.Logger

	mu    sync.Mutex
	cells map[domain.ModelTier]*modelCell
}

// NewEngine creates an engine over the given backend.
func NewEngine(backend Backend, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		backend: backend,
		log:     log.WithComponent("transcribe"),
		cells:   make(map[domain.ModelTier]*modelCell),
	}
}

// Backend returns the configured backend name.
func (e *Engine) Backend() string {
	return e.backend.Name()
}

// Transcribe converts the audio at audioPath to text using the model for tier.
// The language hint is always passed explicitly.
func (e *Engine) Transcribe(ctx context.Context, audioPath string, tier domain.ModelTier, lang domain.Language) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("transcription panicked", logging.Fields("panic", fmt.Sprint(r), "model", string(tier)))
			text = ""
			err = newError(tier, panicError{value: r})
		}
	}()

	if !tier.Valid() {
		return "", newError(tier, fmt.Errorf("unknown model tier %q", tier))
	}
	if !lang.Valid() {
		return "", newError(tier, fmt.Errorf("unknown language %q", lang))
	}

	model, err := e.Model(ctx, tier)
	if err != nil {
		return "", newError(tier, err)
	}

	start := time.Now()
	text, err = model.Transcribe(ctx, audioPath, lang)
	if err != nil {
		e.log.Warn("inference failed", logging.Fields("model", string(tier), "language", string(lang), "error", err))
		return "", newError(tier, err)
	}

	e.log.Info("transcription finished", logging.Fields(
		"model", string(tier),
		"language", string(lang),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	))
	return text, nil
}

// Model returns the memoized model for tier, loading it on first use.
// Concurrent callers for the same tier wait for one load.
func (e *Engine) Model(ctx context.Context, tier domain.ModelTier) (Model, error) {
	cell := e.cell(tier)

	cell.mu.Lock()
	defer cell.mu.Unlock()
	if cell.model != nil {
		return cell.model, nil
	}

	e.log.Info("loading model", logging.Fields("model", string(tier), "backend", e.backend.Name()))
	start := time.Now()
	model, err := e.backend.Load(ctx, tier)
	if err != nil {
		e.log.Warn("model load failed", logging.Fields("model", string(tier), "error", err))
		return nil, fmt.Errorf("load model %s: %w", tier, err)
	}
	cell.model = model
	e.log.Info("model loaded", logging.Fields("model", string(tier), "duration_ms", time.Since(start).Milliseconds()))
	return model, nil
}

// Loaded reports whether tier already has a memoized model.
func (e *Engine) Loaded(tier domain.ModelTier) bool {
	cell := e.cell(tier)
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.model != nil
}

func (e *Engine) cell(tier domain.ModelTier) *modelCell {
	e.mu.Lock()
	defer e.mu.Unlock()
	cell, ok := e.cells[tier]
	if !ok {
		cell = &modelCell{}
		e.cells[tier] = cell
	}
	return cell
}
