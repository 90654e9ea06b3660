package transcribe

import (
	"context"
)

// Options are the per-call recognition options.
type Options struct {
	// Language forces a recognition language. Empty means automatic
	// detection.
	Language string
	// BeamSize is the decoding search breadth. Engines that don't
	// support beam search ignore it.
	BeamSize int
}

// Transcriber is implemented by speech recognition engines
// (e.g. whisper.cpp, Azure Speech).
type Transcriber interface {
	// Transcribe recognizes speech in the given mono 16kHz samples and
	// returns the recognized segments along with the detected language.
	Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, string, error)
	Destroy() error
}

// Segment is a single utterance span produced by a recognition engine.
type Segment struct {
	// Start and End are elapsed times in seconds from the beginning of
	// the audio. End >= Start is assumed from upstream, not enforced.
	Start float64
	End   float64
	Text  string
}

// Transcription is the full result of transcribing one input file.
type Transcription struct {
	// Language is the detected (or forced) language code. Defaults to
	// "unknown" when the engine doesn't report one.
	Language string
	// Duration is the total audio duration in seconds.
	Duration float64
	Segments []Segment
}

// IsEmpty reports whether no speech was recognized. This is a distinct
// outcome, not an error.
func (t Transcription) IsEmpty() bool {
	return len(t.Segments) == 0
}
