package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"video-transcriber/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. VT_SERVER_PORT.
const EnvPrefix = "VT"

var defaultConfigPaths = []string{
	"./config.yml",
	"./config/config.yml",
	"./cmd/app/config.yml",
}

// LoaderConfig holds optional file overrides.
type LoaderConfig struct {
	ConfigFile string
	EnvFile    string
	exists     func(string) bool
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit YAML config path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load reads defaults, then config.yml, then .env, then VT_* environment variables.
func Load(opts ...LoaderOption) (Settings, error) {
	lc := LoaderConfig{exists: fileExists}
	for _, opt := range opts {
		opt(&lc)
	}

	envFile := lc.EnvFile
	if envFile == "" && lc.exists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Settings{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultSettings())

	configFile := lc.ConfigFile
	if configFile == "" {
		for _, candidate := range defaultConfigPaths {
			if lc.exists(candidate) {
				configFile = candidate
				break
			}
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	var errs []error
	if err := s.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", s.Server.Port))
	}
	if len(s.Encoder.Candidates) == 0 {
		errs = append(errs, fmt.Errorf("encoder.candidates must not be empty"))
	}
	if s.Encoder.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("encoder.probe_timeout must be positive (got: %s)", s.Encoder.ProbeTimeout))
	}
	if s.Encoder.ExtractTimeout <= 0 {
		errs = append(errs, fmt.Errorf("encoder.extract_timeout must be positive (got: %s)", s.Encoder.ExtractTimeout))
	}
	if ParseSize(s.Upload.MaxSize, -1) <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_size must be a size like 200MB (got: %q)", s.Upload.MaxSize))
	}
	if len(s.Upload.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("upload.extensions must not be empty"))
	}
	switch s.Transcription.Backend {
	case BackendWhisperCPP, BackendSidecar:
	default:
		errs = append(errs, fmt.Errorf("transcription.backend must be one of [%s, %s] (got: %s)",
			BackendWhisperCPP, BackendSidecar, s.Transcription.Backend))
	}
	if _, err := domain.ParseModelTier(s.Transcription.DefaultTier); err != nil {
		errs = append(errs, fmt.Errorf("transcription.default_tier: %w", err))
	}
	if _, err := domain.ParseLanguage(s.Transcription.DefaultLanguage); err != nil {
		errs = append(errs, fmt.Errorf("transcription.default_language: %w", err))
	}
	return errors.Join(errs...)
}

// DefaultTier returns the parsed default model tier.
func (s *Settings) DefaultTier() domain.ModelTier {
	tier, err := domain.ParseModelTier(s.Transcription.DefaultTier)
	if err != nil {
		return domain.ModelTierMedium
	}
	return tier
}

// DefaultLanguage returns the parsed default language hint.
func (s *Settings) DefaultLanguage() domain.Language {
	lang, err := domain.ParseLanguage(s.Transcription.DefaultLanguage)
	if err != nil {
		return domain.LanguagePortuguese
	}
	return lang
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("environment", d.Environment)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.no_color", d.Logging.NoColor)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.extensions", d.Upload.Extensions)
	v.SetDefault("upload.temp_dir", d.Upload.TempDir)

	v.SetDefault("encoder.candidates", d.Encoder.Candidates)
	v.SetDefault("encoder.probe_timeout", d.Encoder.ProbeTimeout)
	v.SetDefault("encoder.extract_timeout", d.Encoder.ExtractTimeout)

	v.SetDefault("transcription.backend", d.Transcription.Backend)
	v.SetDefault("transcription.whisper_path", d.Transcription.WhisperPath)
	v.SetDefault("transcription.model_dir", d.Transcription.ModelDir)
	v.SetDefault("transcription.auto_download", d.Transcription.AutoDownload)
	v.SetDefault("transcription.download_timeout", d.Transcription.DownloadTimeout)
	v.SetDefault("transcription.sidecar_url", d.Transcription.SidecarURL)
	v.SetDefault("transcription.sidecar_timeout", d.Transcription.SidecarTimeout)
	v.SetDefault("transcription.default_tier", d.Transcription.DefaultTier)
	v.SetDefault("transcription.default_language", d.Transcription.DefaultLanguage)

	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
	v.SetDefault("telemetry.interval", d.Telemetry.Interval)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
