// Package web serves the transcription page and its JSON API over gin.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"video-transcriber/internal/config"
	"video-transcriber/internal/logging"
)

const (
	// formOverhead is the slack allowed above the upload limit for the
	// multipart envelope and the other form fields.
	formOverhead = 1 << 20

	maxMultipartMemory = 32 << 20
	shutdownTimeout    = 5 * time.Second
)

// Server is the HTTP server of the tool.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	log        *logging.Logger
}

// NewServer builds the gin engine, mounts routes and wraps it with h2c.
func NewServer(cfg config.ServerConfig, h *Handlers, assets fs.FS, maxUploadBytes int64, log *logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.WithComponent("server")
	registerValidators()

	engine := gin.New()
	engine.MaxMultipartMemory = maxMultipartMemory
	engine.Use(Recovery(log), RequestID(), RequestLogger(log))

	static, err := fs.Sub(assets, "assets")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	var uploadLimit int64
	if maxUploadBytes > 0 {
		uploadLimit = maxUploadBytes + formOverhead
	}
	limit := BodySizeLimit(uploadLimit)

	engine.GET("/", h.Index)
	engine.POST("/transcribe", limit, h.Transcribe)
	engine.POST("/download", limit, h.Download)
	engine.GET("/health", h.Health)
	engine.StaticFS("/assets", http.FS(static))

	api := engine.Group("/api/v1")
	api.GET("/diagnostics", h.Diagnostics)
	api.GET("/options", h.Options)
	api.POST("/transcriptions", limit, h.CreateTranscription)
	api.GET("/runs/current", h.CurrentRun)
	api.GET("/runs/:id/events", h.RunEvents)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          cfg.IdleTimeout,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           h2c.NewHandler(engine, h2s),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		engine: engine,
		log:    log,
	}, nil
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", logging.Fields("error", err))
		}
	}()

	s.log.Info("HTTP server started", logging.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server shut down")
	return nil
}
