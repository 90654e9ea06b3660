package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mediascribe/transcriber/cmd/transcriber/apis/azure"
	"github.com/mediascribe/transcriber/cmd/transcriber/audio"
	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/engine"
	"github.com/mediascribe/transcriber/cmd/transcriber/media"
	"github.com/mediascribe/transcriber/cmd/transcriber/transcribe"

	"github.com/google/uuid"
)

const languageUnknown = "unknown"

// ErrModelInit is returned when no recognition engine could be
// initialized for the chosen model and compute type, including every
// fallback precision mode.
var ErrModelInit = errors.New("failed to initialize the recognition engine")

// supportedExtensions is the upload allow-list of container/codec
// extensions.
var supportedExtensions = map[string]bool{
	".mp4": true,
	".mp3": true,
	".wav": true,
	".m4a": true,
	".mov": true,
	".mkv": true,
	".avi": true,
}

// SupportedExtension reports whether the given filename carries an
// extension from the upload allow-list.
func SupportedExtension(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Options are the per-upload recognition choices.
type Options struct {
	ModelSize   config.ModelSize
	ComputeType config.ComputeType
	VADFilter   bool
	BeamSize    int
	// Language forces recognition of a specific language. Empty means
	// automatic detection.
	Language string
}

func (o Options) IsValid() error {
	if !o.ModelSize.IsValid() {
		return fmt.Errorf("ModelSize value is not valid")
	}
	if !o.ComputeType.IsValid() {
		return fmt.Errorf("ComputeType value is not valid")
	}
	if o.BeamSize < config.BeamSizeMin || o.BeamSize > config.BeamSizeMax {
		return fmt.Errorf("BeamSize should be in the range [%d, %d]", config.BeamSizeMin, config.BeamSizeMax)
	}
	return nil
}

// OptionsFromConfig returns per-upload options seeded from the service
// configuration.
func OptionsFromConfig(cfg config.TranscriberConfig) Options {
	return Options{
		ModelSize:   cfg.ModelSize,
		ComputeType: cfg.ComputeType,
		VADFilter:   cfg.VADFilter,
		BeamSize:    cfg.BeamSize,
	}
}

// Result is the outcome of processing one upload.
type Result struct {
	// ID keys the downloadable artifacts in the store. Empty when the
	// result is empty.
	ID       string
	Language string
	Duration float64
	// Empty is set when recognition yielded zero segments. This is a
	// distinct outcome, not an error.
	Empty bool
	// Preview is the plain text rendering shown on the page.
	Preview string
}

// Processor runs the synchronous upload pipeline: normalize, recognize,
// format, store artifacts.
type Processor struct {
	cfg     config.TranscriberConfig
	engines *engine.Cache
	store   *Store

	// newEngine is the recognition engine seam, replaced in tests.
	// The returned bool reports whether the engine is owned by the
	// caller and must be destroyed after use.
	newEngine func(opts Options) (transcribe.Transcriber, bool, error)

	// speechSpans is the VAD seam, replaced in tests.
	speechSpans func(samples []float32, vadFilter bool) []span
}

func NewProcessor(cfg config.TranscriberConfig) *Processor {
	p := &Processor{
		cfg:     cfg,
		engines: engine.NewCache(engine.WhisperFactory(cfg)),
		store:   NewStore(),
	}
	p.newEngine = p.defaultEngine
	p.speechSpans = p.detectSpeechSpans

	return p
}

// Store exposes the artifact store for download handlers.
func (p *Processor) Store() *Store {
	return p.store
}

// Close destroys all cached engine handles.
func (p *Processor) Close() error {
	return p.engines.Close()
}

func (p *Processor) defaultEngine(opts Options) (transcribe.Transcriber, bool, error) {
	switch p.cfg.TranscribeAPI {
	case config.TranscribeAPIWhisperCPP:
		tr, _, err := p.engines.Load(opts.ModelSize, opts.ComputeType)
		return tr, false, err
	case config.TranscribeAPIAzure:
		tr, err := azure.NewSpeechRecognizer(azure.SpeechRecognizerConfig{
			SpeechKey:    p.cfg.AzureSpeechKey,
			SpeechRegion: p.cfg.AzureSpeechRegion,
		})
		return tr, true, err
	default:
		return nil, false, fmt.Errorf("unsupported transcribe API %q", p.cfg.TranscribeAPI)
	}
}

// Process runs the full pipeline for one uploaded file. A zero-segment
// recognition produces Result.Empty, never an error.
func (p *Processor) Process(ctx context.Context, filename string, input io.Reader, opts Options) (*Result, error) {
	if !SupportedExtension(filename) {
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(filename))
	}

	if err := opts.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate options: %w", err)
	}

	if err := os.MkdirAll(p.cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	converter, err := media.NewConverter(p.cfg.FFmpegPath)
	if err != nil {
		return nil, err
	}

	wavPath := filepath.Join(p.cfg.DataDir, uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(wavPath); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to remove waveform file", slog.String("err", err.Error()))
		}
	}()

	convertCtx, cancel := context.WithTimeout(ctx, p.cfg.ConvertTimeout)
	defer cancel()
	if err := converter.ExtractWAV(convertCtx, input, wavPath); err != nil {
		return nil, err
	}

	samples, err := audio.ReadWAV(wavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read waveform: %w", err)
	}

	duration := audio.Duration(len(samples))

	tr, owned, err := p.newEngine(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelInit, err)
	}
	if owned {
		defer func() {
			if err := tr.Destroy(); err != nil {
				slog.Error("failed to destroy engine", slog.String("err", err.Error()))
			}
		}()
	}

	transcribeCtx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()

	start := time.Now()

	var segments []transcribe.Segment
	var language string
	for _, sp := range p.speechSpans(samples, opts.VADFilter) {
		segs, lang, err := tr.Transcribe(transcribeCtx, sp.pcm, transcribe.Options{
			Language: opts.Language,
			BeamSize: opts.BeamSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to transcribe: %w", err)
		}

		if language == "" {
			language = lang
		}

		for _, s := range segs {
			s.Start += sp.offset
			s.End += sp.offset
			segments = append(segments, s)
		}
	}

	slog.Info("transcription completed",
		slog.Float64("audioDur", duration),
		slog.Duration("procDur", time.Since(start)),
		slog.Int("numSegments", len(segments)))

	if len(segments) == 0 {
		return &Result{Empty: true, Duration: duration}, nil
	}

	if language == "" || language == "auto" {
		language = languageUnknown
	}

	transcription := transcribe.Transcription{
		Language: language,
		Duration: duration,
		Segments: segments,
	}

	var txt, srt, docx bytes.Buffer
	if err := transcription.Text(&txt); err != nil {
		return nil, fmt.Errorf("failed to render text: %w", err)
	}
	if err := transcription.SRT(&srt); err != nil {
		return nil, fmt.Errorf("failed to render SRT: %w", err)
	}
	if err := transcription.DOCX(&docx); err != nil {
		return nil, fmt.Errorf("failed to render DOCX: %w", err)
	}

	id := uuid.NewString()
	p.store.Put(id, &Artifacts{
		TXT:  txt.Bytes(),
		SRT:  srt.Bytes(),
		DOCX: docx.Bytes(),
	})

	return &Result{
		ID:       id,
		Language: language,
		Duration: duration,
		Preview:  txt.String(),
	}, nil
}
