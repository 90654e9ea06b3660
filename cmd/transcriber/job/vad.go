package job

import (
	"log/slog"
	"path/filepath"

	"github.com/mediascribe/transcriber/cmd/transcriber/audio"

	"github.com/streamer45/silero-vad-go/speech"
)

const (
	// set WindowSize to 512 to get as fine-grained detection as possible (for when
	// the number of samples don't cleanly divide into the WindowSize
	vadWindowSizeInSamples  = 512
	vadThreshold            = 0.5
	vadMinSilenceDurationMs = 150
	vadMinSpeechDurationMs  = 200
	vadSilencePadMs         = 32

	vadModelFilename = "silero_vad.onnx"
)

// span is a contiguous run of samples to feed the recognition engine,
// with its offset (seconds) from the start of the recording.
type span struct {
	pcm    []float32
	offset float64
}

// detectSpeechSpans splits the samples into speech-only spans. When the
// filter is off, or the detector cannot be created, the whole recording
// is returned as a single span.
func (p *Processor) detectSpeechSpans(samples []float32, vadFilter bool) []span {
	whole := []span{{pcm: samples}}

	if !vadFilter || len(samples) == 0 {
		return whole
	}

	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            filepath.Join(p.cfg.ModelsDir, vadModelFilename),
		SampleRate:           audio.SampleRate,
		WindowSize:           vadWindowSizeInSamples,
		Threshold:            vadThreshold,
		MinSilenceDurationMs: vadMinSilenceDurationMs,
		MinSpeechDurationMs:  vadMinSpeechDurationMs,
		SilencePadMs:         vadSilencePadMs,
	})
	if err != nil {
		slog.Warn("failed to create speech detector, transcribing unfiltered",
			slog.String("err", err.Error()))
		return whole
	}
	defer func() {
		if err := sd.Destroy(); err != nil {
			slog.Error("failed to destroy speech detector", slog.String("err", err.Error()))
		}
	}()

	detected, err := sd.Detect(samples)
	if err != nil {
		slog.Warn("speech detection failed, transcribing unfiltered",
			slog.String("err", err.Error()))
		return whole
	}

	duration := audio.Duration(len(samples))

	var spans []span
	for _, seg := range detected {
		start := seg.SpeechStartAt
		end := seg.SpeechEndAt
		// An open segment means speech runs to the end of the recording.
		if end == 0 || end > duration {
			end = duration
		}
		if end <= start {
			continue
		}

		from := int(start * audio.SampleRate)
		to := int(end * audio.SampleRate)
		if to > len(samples) {
			to = len(samples)
		}
		if from >= to {
			continue
		}

		spans = append(spans, span{pcm: samples[from:to], offset: start})
	}

	return spans
}
