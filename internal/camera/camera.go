// Package camera provides frame sources for the sampling loop.
//
// Backends register themselves by name; cgo-backed ones (gst) can be
// compiled out with build tags.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/enriquegit/edge-person-detector/internal/types"
)

// ErrCapture is returned when a camera cannot produce a frame.
var ErrCapture = errors.New("capture failed")

// Camera produces one frame per call.
type Camera interface {
	// Capture blocks until a frame of the configured size is available.
	Capture(ctx context.Context) (types.Frame, error)
	// Close releases the device. Safe to call more than once.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Width   int
	Height  int
	// Device is the capture device (gst: v4l2 device path; empty = libcamerasrc)
	Device string
	// URL selects an RTSP source for the gst backend
	URL string
	// Pipeline overrides the gst source description entirely
	Pipeline string
	// Path is a file or glob for the file backend
	Path string
	// Timeout bounds a single capture
	Timeout time.Duration
}

// Opener creates a camera from its configuration.
type Opener func(ctx context.Context, cfg Config) (Camera, error)

var (
	mu       sync.RWMutex
	backends = make(map[string]Opener)
)

// Register makes a backend available to Open.
func Register(name string, open Opener) {
	mu.Lock()
	defer mu.Unlock()
	backends[name] = open
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

// Open validates cfg and opens the named backend.
func Open(ctx context.Context, cfg Config) (Camera, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("camera: invalid resolution %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	mu.RLock()
	open, ok := backends[cfg.Backend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("camera: unknown backend %q (available: %v)", cfg.Backend, Backends())
	}

	return open(ctx, cfg)
}
