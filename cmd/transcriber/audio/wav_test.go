package audio

import (
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, sampleRate, numChannels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, numChannels, 1)
	err = enc.Write(&gaudio.IntBuffer{
		Format: &gaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	require.NoError(t, err)
	require.NoError(t, enc.Close())
}

func TestReadWAV(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		samples, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
		require.Error(t, err)
		require.Nil(t, samples)
	})

	t.Run("not a WAV file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bogus.wav")
		require.NoError(t, os.WriteFile(path, []byte("not audio"), 0600))

		samples, err := ReadWAV(path)
		require.Error(t, err)
		require.Nil(t, samples)
	})

	t.Run("wrong sample rate", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "44k.wav")
		writeWAV(t, path, 44100, 1, []int{0, 0, 0, 0})

		_, err := ReadWAV(path)
		require.ErrorContains(t, err, "unexpected sample rate 44100")
	})

	t.Run("wrong channel count", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stereo.wav")
		writeWAV(t, path, SampleRate, 2, []int{0, 0, 0, 0})

		_, err := ReadWAV(path)
		require.ErrorContains(t, err, "unexpected number of channels 2")
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ok.wav")
		writeWAV(t, path, SampleRate, 1, []int{0, 16384, -16384, 32767})

		samples, err := ReadWAV(path)
		require.NoError(t, err)
		require.Len(t, samples, 4)
		require.InDelta(t, 0, samples[0], 0.0001)
		require.InDelta(t, 0.5, samples[1], 0.0001)
		require.InDelta(t, -0.5, samples[2], 0.0001)
		require.InDelta(t, 1.0, samples[3], 0.001)
	})
}

func TestDuration(t *testing.T) {
	require.Equal(t, 0.0, Duration(0))
	require.Equal(t, 1.0, Duration(SampleRate))
	require.Equal(t, 2.5, Duration(2*SampleRate+SampleRate/2))
}
