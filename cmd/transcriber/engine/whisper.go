package engine

import (
	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/transcribe"

	whisper "github.com/mediascribe/transcriber/cmd/transcriber/apis/whisper.cpp"
)

// WhisperFactory returns a Factory backed by the whisper.cpp engine, with
// model files resolved from cfg.ModelsDir.
func WhisperFactory(cfg config.TranscriberConfig) Factory {
	return func(size config.ModelSize, computeType config.ComputeType) (transcribe.Transcriber, error) {
		modelFile, err := ModelFile(cfg.ModelsDir, size, computeType)
		if err != nil {
			return nil, err
		}

		return whisper.NewContext(whisper.Config{
			ModelFile:  modelFile,
			NumThreads: cfg.NumThreads,
			NoContext:  true,
		})
	}
}
