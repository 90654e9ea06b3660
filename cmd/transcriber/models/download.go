package models

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/engine"
)

const (
	ggmlBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"
	vadModelURL = "https://raw.githubusercontent.com/snakers4/silero-vad/v4.0/files/silero_vad.onnx"

	vadModelFilename = "silero_vad.onnx"

	downloadTimeout = 30 * time.Minute
)

// Downloader fetches the GGML recognition models and the VAD model into
// the models directory. Files already present are left alone.
type Downloader struct {
	modelsDir string
	client    *http.Client
	baseURL   string
	vadURL    string
}

func NewDownloader(modelsDir string) *Downloader {
	return &Downloader{
		modelsDir: modelsDir,
		client:    &http.Client{Timeout: downloadTimeout},
		baseURL:   ggmlBaseURL,
		vadURL:    vadModelURL,
	}
}

// EnsureModel makes sure the GGML file for the given model size and
// compute type is present, downloading it when missing. It returns the
// file path.
func (d *Downloader) EnsureModel(ctx context.Context, size config.ModelSize, computeType config.ComputeType) (string, error) {
	path, err := engine.ModelFile(d.modelsDir, size, computeType)
	if err != nil {
		return "", err
	}

	url := d.baseURL + "/" + filepath.Base(path)
	if err := d.fetch(ctx, url, path); err != nil {
		return "", err
	}

	return path, nil
}

// EnsureVAD makes sure the VAD model is present, downloading it when
// missing. It returns the file path.
func (d *Downloader) EnsureVAD(ctx context.Context) (string, error) {
	path := filepath.Join(d.modelsDir, vadModelFilename)
	if err := d.fetch(ctx, d.vadURL, path); err != nil {
		return "", err
	}

	return path, nil
}

// fetch downloads url to destPath unless a non-empty file is already
// there. The payload is staged in a temporary file and renamed into
// place so a partial download never shows up under the final name.
func (d *Downloader) fetch(ctx context.Context, url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return fmt.Errorf("failed to create models dir: %w", err)
	}

	slog.Info("downloading model",
		slog.String("url", url),
		slog.String("dst", destPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: status %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmpFile.Name()); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to remove temporary file", slog.String("err", err.Error()))
		}
	}()

	written, err := io.Copy(tmpFile, resp.Body)
	if cerr := tmpFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move model file in place: %w", err)
	}

	slog.Info("model downloaded",
		slog.String("dst", destPath),
		slog.Int64("bytes", written))

	return nil
}
