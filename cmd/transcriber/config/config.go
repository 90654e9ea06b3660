package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

const (
	// defaults
	ModelSizeDefault     = ModelSizeSmallEN
	ComputeTypeDefault   = ComputeTypeFloat32
	TranscribeAPIDefault = TranscribeAPIWhisperCPP
	BeamSizeDefault      = 5

	ListenAddrDefault        = ":8080"
	MaxUploadSizeMBDefault   = 512
	ModelsDirDefault         = "./models"
	DataDirDefault           = "/tmp/transcriber"
	ConvertTimeoutDefault    = 2 * time.Minute
	TranscribeTimeoutDefault = 30 * time.Minute

	BeamSizeMin = 1
	BeamSizeMax = 10
)

type ModelSize string

const (
	ModelSizeSmallEN  ModelSize = "small.en"
	ModelSizeSmall    ModelSize = "small"
	ModelSizeMediumEN ModelSize = "medium.en"
	ModelSizeMedium   ModelSize = "medium"
	ModelSizeLargeV2  ModelSize = "large-v2"
	ModelSizeLargeV3  ModelSize = "large-v3"
)

// ModelSizes lists the supported model variants in display order.
var ModelSizes = []ModelSize{
	ModelSizeSmallEN,
	ModelSizeSmall,
	ModelSizeMediumEN,
	ModelSizeMedium,
	ModelSizeLargeV2,
	ModelSizeLargeV3,
}

// ComputeType is the numeric precision mode used during model inference.
type ComputeType string

const (
	ComputeTypeFloat32     ComputeType = "float32"
	ComputeTypeInt8        ComputeType = "int8"
	ComputeTypeInt8Float32 ComputeType = "int8_float32"
	ComputeTypeFloat16     ComputeType = "float16"
)

// ComputeTypes lists the supported precision modes in display order.
var ComputeTypes = []ComputeType{
	ComputeTypeFloat32,
	ComputeTypeInt8,
	ComputeTypeInt8Float32,
	ComputeTypeFloat16,
}

type TranscribeAPI string

const (
	TranscribeAPIWhisperCPP TranscribeAPI = "whisper.cpp"
	TranscribeAPIAzure      TranscribeAPI = "azure"
)

func (s ModelSize) IsValid() bool {
	switch s {
	case ModelSizeSmallEN, ModelSizeSmall, ModelSizeMediumEN, ModelSizeMedium, ModelSizeLargeV2, ModelSizeLargeV3:
		return true
	default:
		return false
	}
}

func (c ComputeType) IsValid() bool {
	switch c {
	case ComputeTypeFloat32, ComputeTypeInt8, ComputeTypeInt8Float32, ComputeTypeFloat16:
		return true
	default:
		return false
	}
}

func (a TranscribeAPI) IsValid() bool {
	switch a {
	case TranscribeAPIWhisperCPP, TranscribeAPIAzure:
		return true
	default:
		return false
	}
}

type TranscriberConfig struct {
	// transcription config
	TranscribeAPI TranscribeAPI
	ModelSize     ModelSize
	ComputeType   ComputeType
	VADFilter     bool
	BeamSize      int
	NumThreads    int

	// server config
	ListenAddr      string
	MaxUploadSizeMB int

	// paths
	ModelsDir  string
	DataDir    string
	FFmpegPath string

	// timeouts
	ConvertTimeout    time.Duration
	TranscribeTimeout time.Duration

	// azure config, required when TranscribeAPI is "azure"
	AzureSpeechKey    string
	AzureSpeechRegion string
}

func (cfg TranscriberConfig) IsValid() error {
	if cfg == (TranscriberConfig{}) {
		return fmt.Errorf("config cannot be empty")
	}

	if !cfg.TranscribeAPI.IsValid() {
		return fmt.Errorf("TranscribeAPI value is not valid")
	}
	if !cfg.ModelSize.IsValid() {
		return fmt.Errorf("ModelSize value is not valid")
	}
	if !cfg.ComputeType.IsValid() {
		return fmt.Errorf("ComputeType value is not valid")
	}
	if cfg.BeamSize < BeamSizeMin || cfg.BeamSize > BeamSizeMax {
		return fmt.Errorf("BeamSize should be in the range [%d, %d]", BeamSizeMin, BeamSizeMax)
	}
	if numCPU := runtime.NumCPU(); cfg.NumThreads < 1 || cfg.NumThreads > numCPU {
		return fmt.Errorf("NumThreads should be in the range [1, %d]", numCPU)
	}

	if cfg.ListenAddr == "" {
		return fmt.Errorf("ListenAddr cannot be empty")
	}
	if cfg.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MaxUploadSizeMB should be a positive number")
	}

	if cfg.ModelsDir == "" {
		return fmt.Errorf("ModelsDir cannot be empty")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("DataDir cannot be empty")
	}

	if cfg.ConvertTimeout <= 0 {
		return fmt.Errorf("ConvertTimeout should be a positive duration")
	}
	if cfg.TranscribeTimeout <= 0 {
		return fmt.Errorf("TranscribeTimeout should be a positive duration")
	}

	if cfg.TranscribeAPI == TranscribeAPIAzure {
		if cfg.AzureSpeechKey == "" {
			return fmt.Errorf("AzureSpeechKey cannot be empty")
		}
		if cfg.AzureSpeechRegion == "" {
			return fmt.Errorf("AzureSpeechRegion cannot be empty")
		}
	}

	return nil
}

func (cfg *TranscriberConfig) SetDefaults() {
	if cfg.TranscribeAPI == "" {
		cfg.TranscribeAPI = TranscribeAPIDefault
	}

	if cfg.ModelSize == "" {
		cfg.ModelSize = ModelSizeDefault
	}

	if cfg.ComputeType == "" {
		cfg.ComputeType = ComputeTypeDefault
	}

	if cfg.BeamSize == 0 {
		cfg.BeamSize = BeamSizeDefault
	}

	if cfg.NumThreads == 0 {
		cfg.NumThreads = max(1, runtime.NumCPU()/2)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ListenAddrDefault
	}

	if cfg.MaxUploadSizeMB == 0 {
		cfg.MaxUploadSizeMB = MaxUploadSizeMBDefault
	}

	if cfg.ModelsDir == "" {
		cfg.ModelsDir = ModelsDirDefault
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DataDirDefault
	}

	if cfg.ConvertTimeout == 0 {
		cfg.ConvertTimeout = ConvertTimeoutDefault
	}

	if cfg.TranscribeTimeout == 0 {
		cfg.TranscribeTimeout = TranscribeTimeoutDefault
	}
}

func FromEnv() (TranscriberConfig, error) {
	var cfg TranscriberConfig

	if val := os.Getenv("TRANSCRIBE_API"); val != "" {
		cfg.TranscribeAPI = TranscribeAPI(val)
	}
	if val := os.Getenv("MODEL_SIZE"); val != "" {
		cfg.ModelSize = ModelSize(val)
	}
	if val := os.Getenv("COMPUTE_TYPE"); val != "" {
		cfg.ComputeType = ComputeType(val)
	}

	// VAD filtering defaults to on; only an explicit "false" disables it.
	if val, err := strconv.ParseBool(os.Getenv("VAD_FILTER")); err == nil {
		cfg.VADFilter = val
	} else {
		cfg.VADFilter = true
	}

	cfg.BeamSize, _ = strconv.Atoi(os.Getenv("BEAM_SIZE"))
	cfg.NumThreads, _ = strconv.Atoi(os.Getenv("NUM_THREADS"))

	cfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	cfg.MaxUploadSizeMB, _ = strconv.Atoi(os.Getenv("MAX_UPLOAD_SIZE_MB"))

	cfg.ModelsDir = os.Getenv("MODELS_DIR")
	cfg.DataDir = os.Getenv("DATA_DIR")
	cfg.FFmpegPath = os.Getenv("FFMPEG_PATH")

	if val := os.Getenv("CONVERT_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("CONVERT_TIMEOUT parsing failed: %w", err)
		}
		cfg.ConvertTimeout = d
	}
	if val := os.Getenv("TRANSCRIBE_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("TRANSCRIBE_TIMEOUT parsing failed: %w", err)
		}
		cfg.TranscribeTimeout = d
	}

	cfg.AzureSpeechKey = os.Getenv("AZURE_SPEECH_KEY")
	cfg.AzureSpeechRegion = os.Getenv("AZURE_SPEECH_REGION")

	return cfg, nil
}

func (cfg TranscriberConfig) ToEnv() []string {
	if cfg == (TranscriberConfig{}) {
		return nil
	}

	return []string{
		fmt.Sprintf("TRANSCRIBE_API=%s", cfg.TranscribeAPI),
		fmt.Sprintf("MODEL_SIZE=%s", cfg.ModelSize),
		fmt.Sprintf("COMPUTE_TYPE=%s", cfg.ComputeType),
		fmt.Sprintf("VAD_FILTER=%t", cfg.VADFilter),
		fmt.Sprintf("BEAM_SIZE=%d", cfg.BeamSize),
		fmt.Sprintf("NUM_THREADS=%d", cfg.NumThreads),
		fmt.Sprintf("LISTEN_ADDR=%s", cfg.ListenAddr),
		fmt.Sprintf("MAX_UPLOAD_SIZE_MB=%d", cfg.MaxUploadSizeMB),
		fmt.Sprintf("MODELS_DIR=%s", cfg.ModelsDir),
		fmt.Sprintf("DATA_DIR=%s", cfg.DataDir),
		fmt.Sprintf("FFMPEG_PATH=%s", cfg.FFmpegPath),
		fmt.Sprintf("CONVERT_TIMEOUT=%s", cfg.ConvertTimeout),
		fmt.Sprintf("TRANSCRIBE_TIMEOUT=%s", cfg.TranscribeTimeout),
	}
}
