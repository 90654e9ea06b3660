package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/transcribe"
)

// Factory initializes a recognition engine for a model size and compute
// type pair.
type Factory func(size config.ModelSize, computeType config.ComputeType) (transcribe.Transcriber, error)

// fallbackComputeTypes are the CPU-safe precision modes tried, in order,
// after the requested one fails to initialize.
var fallbackComputeTypes = []config.ComputeType{
	config.ComputeTypeInt8,
	config.ComputeTypeInt8Float32,
	config.ComputeTypeFloat32,
}

type cacheKey struct {
	size        config.ModelSize
	computeType config.ComputeType
}

// Cache owns initialized engine handles for the process lifetime. Handles
// are keyed by the compute type that actually succeeded, and requested
// modes are memoized to the succeeding one, so a repeatedly failing
// requested mode doesn't replay the fallback search.
type Cache struct {
	factory Factory

	mtx      sync.Mutex
	handles  map[cacheKey]transcribe.Transcriber
	resolved map[cacheKey]config.ComputeType
}

func NewCache(factory Factory) *Cache {
	return &Cache{
		factory:  factory,
		handles:  make(map[cacheKey]transcribe.Transcriber),
		resolved: make(map[cacheKey]config.ComputeType),
	}
}

// Load returns an initialized engine for the given model size, trying the
// requested compute type first and falling back through the CPU-safe
// modes, skipping duplicates. The first successful initialization wins.
// If every candidate fails, the last failure is returned.
func (c *Cache) Load(size config.ModelSize, requested config.ComputeType) (transcribe.Transcriber, config.ComputeType, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if ct, ok := c.resolved[cacheKey{size, requested}]; ok {
		return c.handles[cacheKey{size, ct}], ct, nil
	}

	candidates := make([]config.ComputeType, 0, len(fallbackComputeTypes)+1)
	candidates = append(candidates, requested)
	for _, ct := range fallbackComputeTypes {
		if ct != requested {
			candidates = append(candidates, ct)
		}
	}

	var lastErr error
	for _, ct := range candidates {
		if tr, ok := c.handles[cacheKey{size, ct}]; ok {
			c.resolved[cacheKey{size, requested}] = ct
			return tr, ct, nil
		}

		tr, err := c.factory(size, ct)
		if err != nil {
			slog.Debug("engine initialization failed",
				slog.String("modelSize", string(size)),
				slog.String("computeType", string(ct)),
				slog.String("err", err.Error()))
			lastErr = err
			continue
		}

		if ct != requested {
			slog.Info("falling back to compute type",
				slog.String("requested", string(requested)),
				slog.String("computeType", string(ct)))
		}

		c.handles[cacheKey{size, ct}] = tr
		c.resolved[cacheKey{size, requested}] = ct

		return tr, ct, nil
	}

	return nil, "", lastErr
}

// Close destroys every cached engine handle.
func (c *Cache) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	var firstErr error
	for k, tr := range c.handles {
		if err := tr.Destroy(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to destroy engine for %s/%s: %w", k.size, k.computeType, err)
		}
		delete(c.handles, k)
	}
	clear(c.resolved)

	return firstErr
}

// modelFileSuffixes maps compute types to GGML model file flavors as laid
// out in the models directory.
var modelFileSuffixes = map[config.ComputeType]string{
	config.ComputeTypeFloat16:     "",
	config.ComputeTypeFloat32:     "-f32",
	config.ComputeTypeInt8:        "-q8_0",
	config.ComputeTypeInt8Float32: "-q8_0-f32",
}

// ModelFile returns the GGML model file path for the given model size and
// compute type. Stock ggml files carry float16 weights; the other modes
// map to quantized or re-converted flavors.
func ModelFile(modelsDir string, size config.ModelSize, computeType config.ComputeType) (string, error) {
	suffix, ok := modelFileSuffixes[computeType]
	if !ok {
		return "", fmt.Errorf("unsupported compute type %q", computeType)
	}
	return filepath.Join(modelsDir, fmt.Sprintf("ggml-%s%s.bin", size, suffix)), nil
}
