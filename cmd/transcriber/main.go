package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/job"
	"github.com/mediascribe/transcriber/cmd/transcriber/models"
	"github.com/mediascribe/transcriber/cmd/transcriber/server"

	"github.com/joho/godotenv"
)

const modelsDownloadTimeout = 30 * time.Minute

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		if source.File == "" {
			// Log from a dependency (e.g. speech SDK).
			if pc, file, line, ok := runtime.Caller(7); ok {
				if f := runtime.FuncForPC(pc); f != nil {
					source.File = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
					source.Line = line
				}
			}
		} else {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to load .env file", slog.String("err", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		slog.Error("failed to validate config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	if cfg.TranscribeAPI == config.TranscribeAPIWhisperCPP {
		downloadCtx, cancel := context.WithTimeout(context.Background(), modelsDownloadTimeout)
		downloader := models.NewDownloader(cfg.ModelsDir)
		if _, err := downloader.EnsureModel(downloadCtx, cfg.ModelSize, cfg.ComputeType); err != nil {
			slog.Error("failed to fetch recognition model", slog.String("err", err.Error()))
			cancel()
			os.Exit(1)
		}
		if _, err := downloader.EnsureVAD(downloadCtx); err != nil {
			slog.Error("failed to fetch VAD model", slog.String("err", err.Error()))
			cancel()
			os.Exit(1)
		}
		cancel()
	}

	processor := job.NewProcessor(cfg)
	defer func() {
		if err := processor.Close(); err != nil {
			slog.Error("failed to close processor", slog.String("err", err.Error()))
		}
	}()

	srv := server.New(cfg, processor)

	slog.Info("starting server", slog.String("addr", cfg.ListenAddr))

	if err := srv.Start(); err != nil {
		slog.Error("failed to start server", slog.String("err", err.Error()))
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("received signal, stopping server")
	if err := srv.Stop(context.Background()); err != nil {
		slog.Error("failed to stop server", slog.String("err", err.Error()))
		os.Exit(1)
	}

	slog.Info("server has stopped, exiting")
}
