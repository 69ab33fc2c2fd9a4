package config

import (
	"os"
	"path/filepath"
	"time"

	"video-transcriber/internal/logging"
)

const (
	// ServiceName identifies this binary in logs and telemetry.
	ServiceName = "video-transcriber"

	BackendWhisperCPP = "whispercpp"
	BackendSidecar    = "sidecar"
)

// Settings is the full runtime configuration.
type Settings struct {
	Environment   string              `mapstructure:"environment"`
	Logging       logging.Config      `mapstructure:"logging"`
	Server        ServerConfig        `mapstructure:"server"`
	Upload        UploadConfig        `mapstructure:"upload"`
	Encoder       EncoderConfig       `mapstructure:"encoder"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// UploadConfig limits accepted uploads.
type UploadConfig struct {
	MaxSize    string   `mapstructure:"max_size"`
	Extensions []string `mapstructure:"extensions"`
	TempDir    string   `mapstructure:"temp_dir"`
}

// EncoderConfig controls the ffmpeg probe and extraction.
type EncoderConfig struct {
	Candidates     []string      `mapstructure:"candidates"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
}

// TranscriptionConfig selects and configures the speech model backend.
type TranscriptionConfig struct {
	Backend         string        `mapstructure:"backend"`
	WhisperPath     string        `mapstructure:"whisper_path"`
	ModelDir        string        `mapstructure:"model_dir"`
	AutoDownload    bool          `mapstructure:"auto_download"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	SidecarURL      string        `mapstructure:"sidecar_url"`
	SidecarTimeout  time.Duration `mapstructure:"sidecar_timeout"`
	DefaultTier     string        `mapstructure:"default_tier"`
	DefaultLanguage string        `mapstructure:"default_language"`
}

// TelemetryConfig enables OTLP export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Insecure   bool          `mapstructure:"insecure"`
	SampleRate float64       `mapstructure:"sample_rate"`
	Interval   time.Duration `mapstructure:"interval"`
}

// DefaultSettings returns the configuration used when no file or env overrides it.
func DefaultSettings() Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return Settings{
		Environment: "development",
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8501,
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 0,
			IdleTimeout:  2 * time.Minute,
		},
		Upload: UploadConfig{
			MaxSize:    "200MB",
			Extensions: []string{"mp4", "avi", "mov", "wmv", "flv", "webm", "mkv"},
		},
		Encoder: EncoderConfig{
			Candidates:     []string{"ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"},
			ProbeTimeout:   10 * time.Second,
			ExtractTimeout: 5 * time.Minute,
		},
		Transcription: TranscriptionConfig{
			Backend:         BackendWhisperCPP,
			WhisperPath:     "whisper-cli",
			ModelDir:        filepath.Join(homeDir, ".video-transcriber", "models"),
			AutoDownload:    true,
			DownloadTimeout: 45 * time.Minute,
			SidecarURL:      "http://localhost:8387",
			SidecarTimeout:  0,
			DefaultTier:     "medium",
			DefaultLanguage: "pt",
		},
		Telemetry: TelemetryConfig{
			Insecure:   true,
			SampleRate: 1.0,
			Interval:   15 * time.Second,
		},
	}
}
