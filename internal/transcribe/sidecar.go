package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/logging"
)

const (
	// BackendNameSidecar identifies the faster-whisper HTTP sidecar backend.
	BackendNameSidecar = "sidecar"

	defaultSidecarURL = "http://localhost:8387"
)

// SidecarConfig configures the HTTP sidecar backend.
type SidecarConfig struct {
	URL     string
	Timeout time.Duration
}

// Sidecar talks to a faster-whisper HTTP service.
type Sidecar struct {
	cfg    SidecarConfig
	client *http.Client
	log    *logging.Logger
}

// NewSidecar creates a sidecar backend. A zero timeout means no client timeout.
func NewSidecar(cfg SidecarConfig, log *logging.Logger) *Sidecar {
	return NewSidecarForTests(cfg, &http.Client{Timeout: cfg.Timeout}, log)
}

// NewSidecarForTests creates a sidecar backend with an injectable HTTP client.
func NewSidecarForTests(cfg SidecarConfig, client *http.Client, log *logging.Logger) *Sidecar {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		cfg.URL = defaultSidecarURL
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Sidecar{
		cfg:    cfg,
		client: client,
		log:    log.WithComponent("sidecar"),
	}
}

// Name returns the backend name.
func (s *Sidecar) Name() string { return BackendNameSidecar }

// Load verifies the sidecar is healthy and binds a client to the tier's model.
func (s *Sidecar) Load(ctx context.Context, tier domain.ModelTier) (Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper sidecar unhealthy (status %d)", resp.StatusCode)
	}

	return &sidecarModel{sidecar: s, model: sidecarModelName(tier)}, nil
}

// sidecarModelName maps a tier to the faster-whisper model identifier.
func sidecarModelName(tier domain.ModelTier) string {
	if tier == domain.ModelTierLarge {
		return "large-v3"
	}
	return string(tier)
}

type sidecarModel struct {
	sidecar *Sidecar
	model   string
}

// Transcribe uploads the audio and returns the recognized text.
func (m *sidecarModel) Transcribe(ctx context.Context, audioPath string, lang domain.Language) (string, error) {
	s := m.sidecar
	audioData, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	_ = writer.WriteField("model", m.model)
	_ = writer.WriteField("language", string(lang))
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("whisper error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}

	s.log.Debug("sidecar response", logging.Fields("segments", len(result.Segments), "detected_language", result.Language))
	return strings.TrimSpace(result.text()), nil
}

type sidecarResponse struct {
	Text     string           `json:"text"`
	Segments []sidecarSegment `json:"segments"`
	Language string           `json:"language"`
}

type sidecarSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// text prefers the full text and falls back to joined segments.
func (r sidecarResponse) text() string {
	if strings.TrimSpace(r.Text) != "" || len(r.Segments) == 0 {
		return r.Text
	}
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		parts = append(parts, strings.TrimSpace(seg.Text))
	}
	return strings.Join(parts, " ")
}
