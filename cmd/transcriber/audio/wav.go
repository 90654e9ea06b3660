package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

const (
	SampleRate = 16000
	numChans   = 1
	bitDepth   = 16
)

// ReadWAV decodes a normalized WAV file (16kHz, mono, 16-bit PCM) into
// float32 samples in the [-1, 1] range, the format the recognition
// engines consume.
func ReadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV data: %w", err)
	}

	if buf.Format.SampleRate != SampleRate {
		return nil, fmt.Errorf("unexpected sample rate %d, should be %d", buf.Format.SampleRate, SampleRate)
	}
	if buf.Format.NumChannels != numChans {
		return nil, fmt.Errorf("unexpected number of channels %d, should be %d", buf.Format.NumChannels, numChans)
	}
	if dec.BitDepth != bitDepth {
		return nil, fmt.Errorf("unexpected bit depth %d, should be %d", dec.BitDepth, bitDepth)
	}

	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / 32768.0
	}

	return samples, nil
}

// Duration returns the audio duration in seconds for the given number of
// 16kHz samples.
func Duration(numSamples int) float64 {
	return float64(numSamples) / SampleRate
}
