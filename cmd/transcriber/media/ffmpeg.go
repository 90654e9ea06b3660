package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrFFmpegNotFound is returned when no conversion binary could be resolved.
var ErrFFmpegNotFound = errors.New("ffmpeg binary not found: install system FFmpeg " +
	"(e.g. 'apt install ffmpeg') or set FFMPEG_PATH to a portable binary")

// ErrConversionFailed is returned when ffmpeg exits with an error. The
// diagnostic output is deliberately not included.
var ErrConversionFailed = errors.New("failed to convert input to WAV")

const stderrTailSize = 2048

// Converter normalizes arbitrary audio/video input into the mono 16kHz WAV
// format required by the recognition engines, by shelling out to ffmpeg.
type Converter struct {
	binPath string
}

// NewConverter resolves the conversion binary. Resolution order: the
// explicitly configured path, a bundled binary next to the executable,
// then "ffmpeg" from PATH. Returns ErrFFmpegNotFound when none resolves.
func NewConverter(ffmpegPath string) (*Converter, error) {
	if ffmpegPath != "" {
		if _, err := os.Stat(ffmpegPath); err != nil {
			return nil, fmt.Errorf("failed to stat configured ffmpeg binary %q: %w", ffmpegPath, err)
		}
		return &Converter{binPath: ffmpegPath}, nil
	}

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), "ffmpeg")
		if _, err := os.Stat(bundled); err == nil {
			return &Converter{binPath: bundled}, nil
		}
	}

	binPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}

	return &Converter{binPath: binPath}, nil
}

// BinPath returns the resolved conversion binary path.
func (c *Converter) BinPath() string {
	return c.binPath
}

// ExtractWAV converts the given input bytes (audio or video) into a 16kHz,
// mono, WAV file at outPath. The input is staged in a temporary file which
// is removed on every exit path. A single attempt is made, no retries.
func (c *Converter) ExtractWAV(ctx context.Context, input io.Reader, outPath string) error {
	inFile, err := os.CreateTemp(filepath.Dir(outPath), "upload-*.input")
	if err != nil {
		return fmt.Errorf("failed to create temporary input file: %w", err)
	}
	defer func() {
		if err := os.Remove(inFile.Name()); err != nil {
			slog.Error("failed to remove temporary input file", slog.String("err", err.Error()))
		}
	}()

	_, err = io.Copy(inFile, input)
	if cerr := inFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write temporary input file: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binPath,
		"-y",
		"-i", inFile.Name(),
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outPath,
	)

	// Diagnostic output is kept out of the returned error. We log a tail
	// of stderr at debug level to help with codec issues.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Debug("ffmpeg conversion failed",
			slog.String("err", err.Error()),
			slog.String("stderr", stderrTail(stderr.Bytes())))
		if ctx.Err() != nil {
			return fmt.Errorf("conversion canceled: %w", ctx.Err())
		}
		return ErrConversionFailed
	}

	return nil
}

func stderrTail(data []byte) string {
	if len(data) > stderrTailSize {
		data = data[len(data)-stderrTailSize:]
	}
	return string(data)
}
