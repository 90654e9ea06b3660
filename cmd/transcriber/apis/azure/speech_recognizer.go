package azure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mediascribe/transcriber/cmd/transcriber/transcribe"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
)

const (
	// Extra slack waiting for the final recognition events after the
	// audio stream has been fully pushed.
	recognitionDrainTimeout = 30 * time.Second
)

type SpeechRecognizerConfig struct {
	SpeechKey    string
	SpeechRegion string
	// Language to force. Empty means the service default.
	Language string
}

func (c SpeechRecognizerConfig) IsValid() error {
	if c.SpeechKey == "" {
		return fmt.Errorf("invalid SpeechKey: should not be empty")
	}

	if c.SpeechRegion == "" {
		return fmt.Errorf("invalid SpeechRegion: should not be empty")
	}

	return nil
}

type SpeechRecognizer struct {
	cfg SpeechRecognizerConfig
}

func NewSpeechRecognizer(cfg SpeechRecognizerConfig) (*SpeechRecognizer, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &SpeechRecognizer{
		cfg: cfg,
	}, nil
}

// Transcribe pushes the given mono 16kHz samples through a continuous
// recognition session and returns one segment per recognized phrase, in
// recognition order. The beam size option is not supported by the
// service and is ignored.
func (s *SpeechRecognizer) Transcribe(ctx context.Context, samples []float32, opts transcribe.Options) ([]transcribe.Segment, string, error) {
	if len(samples) == 0 {
		return nil, "", fmt.Errorf("samples should not be empty")
	}

	cfg, err := speech.NewSpeechConfigFromSubscription(s.cfg.SpeechKey, s.cfg.SpeechRegion)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create speech config: %w", err)
	}
	defer cfg.Close()

	language := opts.Language
	if language == "" {
		language = s.cfg.Language
	}
	if language != "" {
		if err := cfg.SetSpeechRecognitionLanguage(language); err != nil {
			return nil, "", fmt.Errorf("failed to set language: %w", err)
		}
	}

	stream, err := audio.CreatePushAudioInputStream()
	if err != nil {
		return nil, "", fmt.Errorf("failed to create audio stream: %w", err)
	}
	defer stream.Close()

	audioConfig, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create audio config: %w", err)
	}

	speechRecognizer, err := speech.NewSpeechRecognizerFromConfig(cfg, audioConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create speech recognizer: %w", err)
	}
	defer speechRecognizer.Close()

	speechRecognizer.SessionStarted(func(event speech.SessionEventArgs) {
		defer event.Close()
		slog.Debug("session started", slog.String("sessionID", event.SessionID))
	})

	doneCh := make(chan struct{}, 1)
	speechRecognizer.SessionStopped(func(event speech.SessionEventArgs) {
		defer event.Close()
		slog.Debug("session stopped", slog.String("sessionID", event.SessionID))
		select {
		case doneCh <- struct{}{}:
		default:
		}
	})

	speechRecognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		slog.Debug("recognition canceled", slog.String("details", event.ErrorDetails))
		select {
		case doneCh <- struct{}{}:
		default:
		}
	})

	segmentsCh := make(chan transcribe.Segment, 32)
	speechRecognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()

		if event.Result.Reason != common.RecognizedSpeech || event.Result.Text == "" {
			return
		}

		segmentsCh <- transcribe.Segment{
			Text:  event.Result.Text,
			Start: event.Result.Offset.Seconds(),
			End:   event.Result.Offset.Seconds() + event.Result.Duration.Seconds(),
		}
	})

	if err := stream.Write(f32PCMToWAV(samples)); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := <-speechRecognizer.StartContinuousRecognitionAsync(); err != nil {
		return nil, "", fmt.Errorf("failed to start recognizer: %w", err)
	}
	defer func() {
		if err := <-speechRecognizer.StopContinuousRecognitionAsync(); err != nil {
			slog.Error("failed to stop recognizer", slog.String("err", err.Error()))
		}
	}()

	// This is important as it flushes out any remaining audio data.
	stream.CloseStream()

	var segments []transcribe.Segment
	for {
		select {
		case seg := <-segmentsCh:
			segments = append(segments, seg)
		case <-doneCh:
			// Drain anything recognized before the session stopped.
			for {
				select {
				case seg := <-segmentsCh:
					segments = append(segments, seg)
					continue
				default:
				}
				return segments, language, nil
			}
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(recognitionDrainTimeout):
			return nil, "", fmt.Errorf("timed out waiting for transcription")
		}
	}
}

func (s *SpeechRecognizer) Destroy() error {
	return nil
}
