package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/logging"
	"video-transcriber/internal/runner"
)

// BackendNameWhisperCPP identifies the whisper.cpp CLI backend.
const BackendNameWhisperCPP = "whispercpp"

// WhisperCPPConfig configures the whisper.cpp CLI backend.
type WhisperCPPConfig struct {
	BinaryPath      string
	ModelDir        string
	AutoDownload    bool
	DownloadTimeout time.Duration
}

// WhisperCPP loads ggml weights from disk and runs the whisper.cpp CLI.
type WhisperCPP struct {
	cfg      WhisperCPPConfig
	runner   runner.Runner
	client   *http.Client
	stat     func(name string) (os.FileInfo, error)
	readFile func(name string) ([]byte, error)
	log      *logging.Logger
}

// NewWhisperCPP creates the production CLI backend.
func NewWhisperCPP(cfg WhisperCPPConfig, log *logging.Logger) *WhisperCPP {
	return NewWhisperCPPForTests(cfg, runner.NewExec(), http.DefaultClient, log)
}

// NewWhisperCPPForTests creates a CLI backend with injectable process and HTTP clients.
func NewWhisperCPPForTests(cfg WhisperCPPConfig, run runner.Runner, client *http.Client, log *logging.Logger) *WhisperCPP {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		cfg.BinaryPath = "whisper-cli"
	}
	if log == nil {
		log = logging.Nop()
	}
	return &WhisperCPP{
		cfg:      cfg,
		runner:   run,
		client:   client,
		stat:     os.Stat,
		readFile: os.ReadFile,
		log:      log.WithComponent("whispercpp"),
	}
}

// Name returns the backend name.
func (w *WhisperCPP) Name() string { return BackendNameWhisperCPP }

// Load resolves the weights file for tier, downloading it when allowed.
func (w *WhisperCPP) Load(ctx context.Context, tier domain.ModelTier) (Model, error) {
	preset, ok := ModelFor(tier)
	if !ok {
		return nil, fmt.Errorf("no model preset for tier %q", tier)
	}
	if strings.TrimSpace(w.cfg.ModelDir) == "" {
		return nil, errors.New("model directory is not configured")
	}

	modelPath := filepath.Join(w.cfg.ModelDir, preset.FileName)
	info, err := w.stat(modelPath)
	switch {
	case err == nil && info.IsDir():
		return nil, fmt.Errorf("model path is a directory: %s", modelPath)
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if !w.cfg.AutoDownload {
			return nil, fmt.Errorf("model file not found: %s", modelPath)
		}
		w.log.Info("downloading model", logging.Fields("model", string(tier), "url", preset.URL, "size", preset.SizeLabel))
		if err := downloadURLToFile(ctx, w.client, modelPath, preset.URL, w.cfg.DownloadTimeout); err != nil {
			return nil, fmt.Errorf("download model %s: %w", preset.Name, err)
		}
	default:
		return nil, fmt.Errorf("check model path: %w", err)
	}

	return &cliModel{backend: w, modelPath: modelPath}, nil
}

// minWhisperCPPVersion is the first whisper-cli release that decodes mp3 input.
const minWhisperCPPVersion = "1.7.0"

// cliModel runs one whisper.cpp invocation per transcription.
type cliModel struct {
	backend   *WhisperCPP
	modelPath string
}

// Transcribe writes <audio base>.txt next to the audio and returns its content.
func (m *cliModel) Transcribe(ctx context.Context, audioPath string, lang domain.Language) (string, error) {
	w := m.backend
	textBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := buildWhisperArgs(m.modelPath, audioPath, textBase, lang)

	res, err := w.runner.Run(ctx, w.cfg.BinaryPath, args...)
	if err != nil {
		detail := firstNonEmpty(strings.TrimSpace(res.Stderr), err.Error())
		w.log.Warn("whisper.cpp failed", logging.Fields("command", res.String(), "exit_code", res.ExitCode))
		if strings.Contains(strings.ToLower(detail), "failed to read") {
			return "", fmt.Errorf("whisper.cpp could not read %s (mp3 input needs whisper.cpp %s or newer): %s", filepath.Base(audioPath), minWhisperCPPVersion, detail)
		}
		return "", fmt.Errorf("whisper.cpp failed: %s", detail)
	}

	textPath := textBase + ".txt"
	content, err := w.readFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper.cpp completed but transcript file is missing: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

// buildWhisperArgs builds whisper.cpp args for txt transcript export.
func buildWhisperArgs(modelPath, audioPath, textBase string, lang domain.Language) []string {
	return []string{
		"-m", modelPath,
		"-f", audioPath,
		"-l", string(lang),
		"-otxt",
		"-of", textBase,
		"-np",
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
