package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/job"

	"github.com/gin-gonic/gin"
)

// Processor runs the transcription pipeline for uploaded files and
// keeps the rendered artifacts for download.
type Processor interface {
	Process(ctx context.Context, filename string, input io.Reader, opts job.Options) (*job.Result, error)
	Store() *job.Store
}

// Server exposes the upload page, the transcription endpoint and the
// artifact downloads over HTTP.
type Server struct {
	cfg        config.TranscriberConfig
	processor  Processor
	httpServer *http.Server
}

func New(cfg config.TranscriberConfig, processor Processor) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:       cfg,
		processor: processor,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = int64(cfg.MaxUploadSizeMB) << 20

	engine.GET("/", s.handleIndex)
	engine.POST("/api/transcribe", s.handleTranscribe)
	engine.GET("/api/transcriptions/:id/transcript.txt", s.handleDownload(formatText))
	engine.GET("/api/transcriptions/:id/transcript.srt", s.handleDownload(formatSRT))
	engine.GET("/api/transcriptions/:id/transcript.docx", s.handleDownload(formatDOCX))

	s.httpServer = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     engine,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 2 * time.Minute,
	}

	return s
}

// Handler returns the HTTP handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listen address and begins serving. It returns once
// the listener is bound; serving continues in a goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("server failure", slog.String("err", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
