package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFakeFFmpeg creates a fake conversion binary that writes its last
// argument (the output path) and exits with the given code.
func writeFakeFFmpeg(t *testing.T, dir string, exitCode int) string {
	t.Helper()

	script := "#!/bin/sh\nfor a; do out=$a; done\necho fake-wav > \"$out\"\nexit 0\n"
	if exitCode != 0 {
		script = "#!/bin/sh\necho 'conversion error' >&2\nexit 1\n"
	}

	binPath := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(binPath, []byte(script), 0700))

	return binPath
}

func TestNewConverter(t *testing.T) {
	t.Run("not resolvable", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())

		c, err := NewConverter("")
		require.ErrorIs(t, err, ErrFFmpegNotFound)
		require.Nil(t, c)
	})

	t.Run("configured path missing", func(t *testing.T) {
		c, err := NewConverter(filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrFFmpegNotFound)
		require.Nil(t, c)
	})

	t.Run("configured path", func(t *testing.T) {
		binPath := writeFakeFFmpeg(t, t.TempDir(), 0)

		c, err := NewConverter(binPath)
		require.NoError(t, err)
		require.Equal(t, binPath, c.BinPath())
	})

	t.Run("resolved from PATH", func(t *testing.T) {
		dir := t.TempDir()
		binPath := writeFakeFFmpeg(t, dir, 0)
		t.Setenv("PATH", dir)

		c, err := NewConverter("")
		require.NoError(t, err)
		require.Equal(t, binPath, c.BinPath())
	})
}

func TestExtractWAV(t *testing.T) {
	inputLeft := func(t *testing.T, dir string) bool {
		t.Helper()
		matches, err := filepath.Glob(filepath.Join(dir, "upload-*.input"))
		require.NoError(t, err)
		return len(matches) > 0
	}

	t.Run("success", func(t *testing.T) {
		dir := t.TempDir()
		c, err := NewConverter(writeFakeFFmpeg(t, dir, 0))
		require.NoError(t, err)

		outPath := filepath.Join(dir, "out.wav")
		err = c.ExtractWAV(context.Background(), bytes.NewReader([]byte("data")), outPath)
		require.NoError(t, err)

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		require.Equal(t, "fake-wav\n", string(data))

		require.False(t, inputLeft(t, dir))
	})

	t.Run("conversion failure", func(t *testing.T) {
		dir := t.TempDir()
		c, err := NewConverter(writeFakeFFmpeg(t, dir, 1))
		require.NoError(t, err)

		outPath := filepath.Join(dir, "out.wav")
		err = c.ExtractWAV(context.Background(), bytes.NewReader([]byte("data")), outPath)
		require.ErrorIs(t, err, ErrConversionFailed)

		// The staged input file is removed on failure as well.
		require.False(t, inputLeft(t, dir))
	})

	t.Run("canceled context", func(t *testing.T) {
		dir := t.TempDir()
		c, err := NewConverter(writeFakeFFmpeg(t, dir, 0))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = c.ExtractWAV(ctx, bytes.NewReader([]byte("data")), filepath.Join(dir, "out.wav"))
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, inputLeft(t, dir))
	})
}
