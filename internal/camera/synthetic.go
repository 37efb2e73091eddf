package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enriquegit/edge-person-detector/internal/types"
)

func init() {
	Register("synthetic", func(_ context.Context, cfg Config) (Camera, error) {
		return NewSyntheticCamera(cfg.Width, cfg.Height), nil
	})
}

// SyntheticCamera generates black frames for testing and dry runs
type SyntheticCamera struct {
	width  int
	height int

	mu        sync.Mutex
	seq       uint64
	closed    bool
	startTime time.Time
}

// NewSyntheticCamera creates a new synthetic camera
func NewSyntheticCamera(width, height int) *SyntheticCamera {
	slog.Info("camera: synthetic source created",
		"width", width,
		"height", height,
	)

	return &SyntheticCamera{
		width:     width,
		height:    height,
		startTime: time.Now(),
	}
}

// Capture returns a new black RGB24 frame
func (c *SyntheticCamera) Capture(ctx context.Context) (types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.Frame{}, fmt.Errorf("%w: camera closed", ErrCapture)
	}
	seq := c.seq
	c.seq++
	c.mu.Unlock()

	return types.Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     c.width,
		Height:    c.height,
		Data:      make([]byte, c.width*c.height*types.BytesPerPixel),
		Source:    "synthetic",
		TraceID:   uuid.New().String(),
	}, nil
}

// Close stops the camera
func (c *SyntheticCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	slog.Info("camera: synthetic source closed",
		"frames_emitted", c.seq,
		"duration", time.Since(c.startTime),
	)
	return nil
}
