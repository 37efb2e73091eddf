package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/enriquegit/edge-person-detector/internal/types"
)

func init() {
	Register("file", func(_ context.Context, cfg Config) (Camera, error) {
		return NewFileCamera(cfg.Path, cfg.Width, cfg.Height)
	})
}

// FileCamera replays still images from disk, one per capture, in a loop.
type FileCamera struct {
	paths  []string
	width  int
	height int

	mu     sync.Mutex
	next   int
	seq    uint64
	closed bool
}

// NewFileCamera resolves pattern (a path or glob) to a sorted list of images.
func NewFileCamera(pattern string, width, height int) (*FileCamera, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("camera: invalid file pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("camera: no images match %q", pattern)
	}
	sort.Strings(paths)

	slog.Info("camera: file source opened",
		"pattern", pattern,
		"images", len(paths),
		"width", width,
		"height", height,
	)

	return &FileCamera{paths: paths, width: width, height: height}, nil
}

// Capture decodes the next image and places it top-left on a black canvas
// of the configured size.
func (c *FileCamera) Capture(ctx context.Context) (types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.Frame{}, fmt.Errorf("%w: camera closed", ErrCapture)
	}
	path := c.paths[c.next]
	c.next = (c.next + 1) % len(c.paths)
	seq := c.seq
	c.seq++
	c.mu.Unlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	canvas := imaging.New(c.width, c.height, color.Black)
	canvas = imaging.Paste(canvas, img, image.Pt(0, 0))

	frame := types.FromImage(canvas)
	frame.Seq = seq
	frame.Timestamp = time.Now()
	frame.Source = "file"
	frame.TraceID = uuid.New().String()

	slog.Debug("camera: image loaded",
		"path", path,
		"seq", seq,
		"trace_id", frame.TraceID,
	)

	return frame, nil
}

// Close is idempotent.
func (c *FileCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
