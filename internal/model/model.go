// Package model wraps object-detection runtimes behind a single interface.
//
// Every backend returns the four SSD post-processing tensors (boxes,
// classes, scores, count) as a detection.RawOutput; decoding them is left
// to the caller.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/types"
)

// ErrInference is returned when a model fails to run on a frame.
var ErrInference = errors.New("inference failed")

// Model runs object detection on RGB24 frames.
type Model interface {
	// InputSize is the frame size the model expects.
	InputSize() (width, height int)
	// Infer runs the model on a frame of exactly InputSize.
	Infer(ctx context.Context, frame types.Frame) (detection.RawOutput, error)
	// Close frees the runtime. Safe to call more than once.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Path          string
	EdgeTPU       bool
	Threads       int
	MaxDetections int
	// InputWidth and InputHeight fix the input size for runtimes whose
	// graphs leave it dynamic (onnx)
	InputWidth  int
	InputHeight int
	// Library is the onnxruntime shared library; empty uses the system default
	Library string
}

// Loader creates a model from its configuration.
type Loader func(cfg Config) (Model, error)

var (
	mu       sync.RWMutex
	backends = make(map[string]Loader)
)

// Register makes a backend available to Load.
func Register(name string, load Loader) {
	mu.Lock()
	defer mu.Unlock()
	backends[name] = load
}

// Backends lists registered backend names.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load opens the model with the named backend.
func Load(cfg Config) (Model, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("model: path is required")
	}
	if cfg.MaxDetections <= 0 {
		cfg.MaxDetections = 100
	}

	mu.RLock()
	load, ok := backends[cfg.Backend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model: unknown backend %q (available: %v)", cfg.Backend, Backends())
	}

	return load(cfg)
}

// checkFrame verifies the frame matches the model input.
func checkFrame(frame types.Frame, width, height int) error {
	if !frame.Valid() {
		return fmt.Errorf("%w: malformed frame (%dx%d, %d bytes)",
			ErrInference, frame.Width, frame.Height, len(frame.Data))
	}
	if frame.Width != width || frame.Height != height {
		return fmt.Errorf("%w: frame is %dx%d, model expects %dx%d",
			ErrInference, frame.Width, frame.Height, width, height)
	}
	return nil
}

// normalize maps RGB bytes to [-1, 1] for float-input models.
func normalize(data []byte) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = (float32(v) - 127.5) / 127.5
	}
	return out
}

// copyFloats detaches output data from runtime-owned memory.
func copyFloats(src []float32) []float32 {
	return append([]float32(nil), src...)
}
