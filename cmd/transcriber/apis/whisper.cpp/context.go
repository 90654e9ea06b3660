package whisper

// #cgo linux LDFLAGS: -l:libwhisper.a -lm -lstdc++
// #cgo darwin LDFLAGS: -lwhisper -lstdc++ -framework Accelerate
// #include <whisper.h>
// #include <stdlib.h>
import "C"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"unsafe"

	"github.com/mediascribe/transcriber/cmd/transcriber/transcribe"
)

// ticksPerSecond is the resolution of whisper.cpp segment timestamps
// (10ms ticks).
const ticksPerSecond = 100

type Config struct {
	// The path to the GGML model file to use.
	ModelFile string
	// The number of system threads to use to perform the transcription.
	NumThreads int
	// Whether or not past transcription should be used as prompt.
	NoContext bool
	// Whether or not to print progress to stdout (default false).
	PrintProgress bool
}

func (c Config) IsValid() error {
	if c == (Config{}) {
		return fmt.Errorf("invalid empty config")
	}

	if c.ModelFile == "" {
		return fmt.Errorf("invalid ModelFile: should not be empty")
	}

	if _, err := os.Stat(c.ModelFile); err != nil {
		return fmt.Errorf("invalid ModelFile: failed to stat model file: %w", err)
	}

	if numCPU := runtime.NumCPU(); c.NumThreads == 0 || c.NumThreads > numCPU {
		return fmt.Errorf("invalid NumThreads: should be in the range [1, %d]", numCPU)
	}

	return nil
}

type Context struct {
	cfg     Config
	ctx     *C.struct_whisper_context
	cparams C.struct_whisper_context_params
}

func NewContext(cfg Config) (*Context, error) {
	var c Context

	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	c.cfg = cfg

	slog.Debug("creating transcription context", slog.Any("cfg", cfg))

	path := C.CString(cfg.ModelFile)
	defer C.free(unsafe.Pointer(path))

	c.cparams = C.whisper_context_default_params()
	c.ctx = C.whisper_init_from_file_with_params(path, c.cparams)
	if c.ctx == nil {
		return nil, fmt.Errorf("failed to load model file")
	}

	return &c, nil
}

func (c *Context) Destroy() error {
	if c.ctx == nil {
		return fmt.Errorf("context is not initialized")
	}
	C.whisper_free(c.ctx)
	c.ctx = nil
	return nil
}

// Transcribe runs speech recognition on the given mono 16kHz samples and
// returns the recognized segments along with the detected language.
// Decoding parameters are rebuilt on each call since beam width and
// language are per-request options. The underlying whisper_full call is
// not cancellable; ctx is only checked before work starts.
func (c *Context) Transcribe(ctx context.Context, samples []float32, opts transcribe.Options) ([]transcribe.Segment, string, error) {
	if c.ctx == nil {
		return nil, "", fmt.Errorf("context is not initialized")
	}

	if len(samples) == 0 {
		return nil, "", fmt.Errorf("samples should not be empty")
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	var params C.struct_whisper_full_params
	if opts.BeamSize > 1 {
		params = C.whisper_full_default_params(C.WHISPER_SAMPLING_BEAM_SEARCH)
		params.beam_search.beam_size = C.int(opts.BeamSize)
	} else {
		params = C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	}
	params.no_context = C.bool(c.cfg.NoContext)
	params.n_threads = C.int(c.cfg.NumThreads)
	params.print_progress = C.bool(c.cfg.PrintProgress)

	language := opts.Language
	if language == "" {
		language = "auto"
	}
	params.language = C.CString(language)
	defer C.free(unsafe.Pointer(params.language))

	ret := C.whisper_full(c.ctx, params, (*C.float)(&samples[0]), C.int(len(samples)))
	if ret != 0 {
		return nil, "", fmt.Errorf("whisper_full failed with code %d", ret)
	}

	lang := C.GoString(C.whisper_lang_str(C.whisper_full_lang_id(c.ctx)))

	n := int(C.whisper_full_n_segments(c.ctx))
	segments := make([]transcribe.Segment, n)
	for i := 0; i < n; i++ {
		segments[i].Text = C.GoString(C.whisper_full_get_segment_text(c.ctx, C.int(i)))
		segments[i].Start = float64(C.whisper_full_get_segment_t0(c.ctx, C.int(i))) / ticksPerSecond
		segments[i].End = float64(C.whisper_full_get_segment_t1(c.ctx, C.int(i))) / ticksPerSecond
	}

	return segments, lang, nil
}
