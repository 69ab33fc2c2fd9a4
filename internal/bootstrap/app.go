// Package bootstrap wires configuration, the pipeline stages and the HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"video-transcriber/internal/config"
	"video-transcriber/internal/diagnostics"
	"video-transcriber/internal/jobs"
	"video-transcriber/internal/logging"
	"video-transcriber/internal/media"
	"video-transcriber/internal/pipeline"
	"video-transcriber/internal/telemetry"
	"video-transcriber/internal/transcribe"
	"video-transcriber/internal/web"
)

// Version is stamped at build time with -ldflags "-X video-transcriber/internal/bootstrap.Version=...".
var Version = "dev"

const (
	shutdownTimeout   = 10 * time.Second
	sessionPruneEvery = 10 * time.Minute
	maxBufferedEvents = 1000
	frontendDir       = "frontend"
	toolDirName       = ".video-transcriber"
)

// Options selects config sources and frontend assets.
type Options struct {
	ConfigFile string
	EnvFile    string
	// Assets holds index.html and assets/; nil serves ./frontend from disk.
	Assets fs.FS
}

// App owns every long-lived component of the tool.
type App struct {
	Settings  config.Settings
	Log       *logging.Logger
	Telemetry *telemetry.Providers
	Probe     *diagnostics.EncoderProbe
	Engine    *transcribe.Engine
	Pipeline  *pipeline.Controller
	Sessions  *jobs.Sessions
	Events    *jobs.EventBus
	Server    *web.Server
}

// New builds the application serving the frontend from disk.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application with the given frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	return NewWithOptions(Options{Assets: assets})
}

// NewWithOptions loads settings from the configured sources and builds the application.
func NewWithOptions(opts Options) (*App, error) {
	var loadOpts []config.LoaderOption
	if opts.ConfigFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(opts.ConfigFile))
	}
	if opts.EnvFile != "" {
		loadOpts = append(loadOpts, config.WithEnvFile(opts.EnvFile))
	}

	settings, err := config.Load(loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		if err := ensureToolDirOnPATH(filepath.Join(homeDir, toolDirName, "bin")); err != nil {
			return nil, fmt.Errorf("prepare local tool path: %w", err)
		}
	}

	assets := opts.Assets
	if assets == nil {
		assets = os.DirFS(frontendDir)
	}
	return build(context.Background(), settings, assets)
}

// build wires the components for already validated settings.
func build(ctx context.Context, settings config.Settings, assets fs.FS) (*App, error) {
	settings.Logging.ApplyDefaults()
	log := logging.New(settings.Logging, config.ServiceName)
	gin.SetMode(ginMode(settings.Logging.Level))

	providers, err := telemetry.Setup(ctx, settings.Telemetry, settings.Environment, Version, log)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		log.Warn("metrics disabled", logging.Fields("error", err))
	}

	probe := diagnostics.NewEncoderProbe(settings.Encoder.Candidates, settings.Encoder.ProbeTimeout, log)
	extractor := media.NewExtractor(settings.Encoder.ExtractTimeout, log)
	engine := transcribe.NewEngine(newBackend(settings.Transcription, log), log)

	controller := pipeline.New(pipeline.Config{
		WorkspaceRoot:  settings.Upload.TempDir,
		MaxUploadBytes: settings.Upload.MaxBytes(),
		Extensions:     settings.Upload.Extensions,
	}, probe, extractor, engine, metrics, log)

	sessions := jobs.NewSessions(jobs.DefaultSessionTTL)
	events := jobs.NewEventBus(maxBufferedEvents)

	handlers, err := web.NewHandlers(web.HandlerConfig{
		DefaultTier:     settings.DefaultTier(),
		DefaultLanguage: settings.DefaultLanguage(),
		ModelDir:        settings.Transcription.ModelDir,
		Backend:         engine.Backend(),
		SecureCookie:    strings.EqualFold(settings.Environment, "production"),
	}, controller, sessions, events, assets, log)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("build handlers: %w", err)
	}

	server, err := web.NewServer(settings.Server, handlers, assets, controller.MaxUploadBytes(), log)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("build server: %w", err)
	}

	return &App{
		Settings:  settings,
		Log:       log,
		Telemetry: providers,
		Probe:     probe,
		Engine:    engine,
		Pipeline:  controller,
		Sessions:  sessions,
		Events:    events,
		Server:    server,
	}, nil
}

// newBackend selects the speech model backend named in cfg.
func newBackend(cfg config.TranscriptionConfig, log *logging.Logger) transcribe.Backend {
	if cfg.Backend == config.BackendSidecar {
		return transcribe.NewSidecar(transcribe.SidecarConfig{
			URL:     cfg.SidecarURL,
			Timeout: cfg.SidecarTimeout,
		}, log)
	}
	return transcribe.NewWhisperCPP(transcribe.WhisperCPPConfig{
		BinaryPath:      cfg.WhisperPath,
		ModelDir:        cfg.ModelDir,
		AutoDownload:    cfg.AutoDownload,
		DownloadTimeout: cfg.DownloadTimeout,
	}, log)
}

// ginMode keeps gin's debug output for debug logging only.
func ginMode(level string) string {
	if strings.EqualFold(level, "debug") || strings.EqualFold(level, "trace") {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts the server and blocks until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		_ = a.Telemetry.Shutdown(context.Background())
		return err
	}

	encoder := a.Probe.Probe(ctx)
	fields := logging.Fields(
		"addr", a.Server.Addr(),
		"version", Version,
		"backend", a.Engine.Backend(),
		"encoder", encoder.Available,
	)
	if encoder.Available {
		fields["encoder_path"] = encoder.Path
	}
	a.Log.Info("video transcriber ready", fields)
	if !encoder.Available {
		a.Log.Warn("ffmpeg not found, uploads are disabled", logging.Fields("tried", encoder.Tried))
	}

	go a.pruneSessions(ctx, sessionPruneEvery)

	<-ctx.Done()
	a.Log.Info("shutting down")
	return a.Shutdown()
}

// Shutdown stops the server and flushes telemetry.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// pruneSessions drops idle sessions until ctx is done.
func (a *App) pruneSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Sessions.Prune(); n > 0 {
				a.Log.Debug("pruned idle sessions", logging.Fields("count", n, "remaining", a.Sessions.Len()))
			}
		}
	}
}
