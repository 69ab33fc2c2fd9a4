package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"video-transcriber/internal/domain"
)

// writeFile creates a file under t.TempDir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// TestDefaultSettings checks the baseline tier, language, limits and candidates.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Transcription.DefaultTier != "medium" {
		t.Fatalf("default tier = %q, want medium", cfg.Transcription.DefaultTier)
	}
	if cfg.Transcription.DefaultLanguage != "pt" {
		t.Fatalf("default language = %q, want pt", cfg.Transcription.DefaultLanguage)
	}
	if cfg.Encoder.ProbeTimeout != 10*time.Second {
		t.Fatalf("probe timeout = %s, want 10s", cfg.Encoder.ProbeTimeout)
	}
	if cfg.Encoder.ExtractTimeout != 5*time.Minute {
		t.Fatalf("extract timeout = %s, want 5m", cfg.Encoder.ExtractTimeout)
	}
	if cfg.Upload.MaxSize != "200MB" {
		t.Fatalf("max size = %q, want 200MB", cfg.Upload.MaxSize)
	}
	if len(cfg.Encoder.Candidates) != 3 || cfg.Encoder.Candidates[0] != "ffmpeg" {
		t.Fatalf("candidates = %v", cfg.Encoder.Candidates)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

// TestLoadWithoutFilesReturnsDefaults checks zero-config startup.
func TestLoadWithoutFilesReturnsDefaults(t *testing.T) {
	cfg, err := Load(WithConfigFile(writeFile(t, "config.yml", "{}\n")))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8501 {
		t.Fatalf("port = %d, want 8501", cfg.Server.Port)
	}
	if cfg.DefaultTier() != domain.ModelTierMedium {
		t.Fatalf("tier = %q, want medium", cfg.DefaultTier())
	}
	if cfg.DefaultLanguage() != domain.LanguagePortuguese {
		t.Fatalf("language = %q, want pt", cfg.DefaultLanguage())
	}
}

// TestLoadConfigFileOverrides checks YAML values replace defaults.
func TestLoadConfigFileOverrides(t *testing.T) {
	path := writeFile(t, "config.yml", `
server:
  port: 9000
encoder:
  candidates: ["/opt/ffmpeg/bin/ffmpeg"]
  extract_timeout: 90s
transcription:
  backend: sidecar
  default_tier: tiny
  default_language: en
`)

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.Encoder.Candidates) != 1 || cfg.Encoder.Candidates[0] != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("candidates = %v", cfg.Encoder.Candidates)
	}
	if cfg.Encoder.ExtractTimeout != 90*time.Second {
		t.Fatalf("extract timeout = %s, want 90s", cfg.Encoder.ExtractTimeout)
	}
	if cfg.Encoder.ProbeTimeout != 10*time.Second {
		t.Fatalf("probe timeout = %s, want default 10s", cfg.Encoder.ProbeTimeout)
	}
	if cfg.Transcription.Backend != BackendSidecar {
		t.Fatalf("backend = %q, want sidecar", cfg.Transcription.Backend)
	}
	if cfg.DefaultTier() != domain.ModelTierTiny {
		t.Fatalf("tier = %q, want tiny", cfg.DefaultTier())
	}
}

// TestLoadEnvOverrides checks VT_* variables win over files.
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VT_SERVER_PORT", "7777")
	t.Setenv("VT_TRANSCRIPTION_DEFAULT_LANGUAGE", "fr")

	cfg, err := Load(WithConfigFile(writeFile(t, "config.yml", "server:\n  port: 9000\n")))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Fatalf("port = %d, want 7777", cfg.Server.Port)
	}
	if cfg.DefaultLanguage() != domain.LanguageFrench {
		t.Fatalf("language = %q, want fr", cfg.DefaultLanguage())
	}
}

// TestLoadEnvFile checks .env values are applied.
func TestLoadEnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "VT_TRANSCRIPTION_DEFAULT_TIER=small\n")
	t.Cleanup(func() { os.Unsetenv("VT_TRANSCRIPTION_DEFAULT_TIER") })

	cfg, err := Load(
		WithConfigFile(writeFile(t, "config.yml", "{}\n")),
		WithEnvFile(envPath),
	)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultTier() != domain.ModelTierSmall {
		t.Fatalf("tier = %q, want small", cfg.DefaultTier())
	}
}

// TestLoadRejectsInvalidValues checks validation errors surface.
func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "config.yml", `
transcription:
  backend: cloud
  default_tier: huge
`)
	if _, err := Load(WithConfigFile(path)); err == nil {
		t.Fatal("expected validation error")
	}
}

// TestLoadMissingConfigFile checks explicit paths must exist.
func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "missing.yml"))); err == nil {
		t.Fatal("expected read error")
	}
}
