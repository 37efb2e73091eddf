//go:build !no_gst

package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/enriquegit/edge-person-detector/internal/types"
)

func init() {
	Register("gst", func(_ context.Context, cfg Config) (Camera, error) {
		return NewGstCamera(cfg)
	})
}

// GstCamera pulls RGB frames from a GStreamer pipeline through an appsink.
//
// Pipeline structure:
//
//	<source> → videoconvert → videoscale → capsfilter(RGB,WxH) → appsink
//
// The source is libcamerasrc by default, v4l2src when a device is given,
// rtspsrc for a URL, or any user supplied description.
type GstCamera struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
	frames   chan types.Frame

	width   int
	height  int
	timeout time.Duration

	frameCount    uint64
	framesDropped uint64

	closeOnce sync.Once
	closeErr  error
}

// sourceDescription picks the capture source for cfg.
func sourceDescription(cfg Config) string {
	switch {
	case cfg.Pipeline != "":
		return cfg.Pipeline
	case cfg.URL != "":
		// protocols=4 forces TCP transport
		return fmt.Sprintf("rtspsrc location=%s protocols=4 latency=200 ! rtph264depay ! h264parse ! avdec_h264", cfg.URL)
	case cfg.Device != "":
		return fmt.Sprintf("v4l2src device=%s", cfg.Device)
	default:
		return "libcamerasrc"
	}
}

// pipelineDescription is everything up to (not including) the appsink.
func pipelineDescription(cfg Config) string {
	return fmt.Sprintf(
		"%s ! videoconvert ! videoscale ! capsfilter name=fit caps=video/x-raw,format=RGB,width=%d,height=%d",
		sourceDescription(cfg), cfg.Width, cfg.Height,
	)
}

// NewGstCamera builds the pipeline and starts it
func NewGstCamera(cfg Config) (*GstCamera, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	desc := pipelineDescription(cfg)
	slog.Debug("camera: creating gst pipeline", "pipeline", desc)

	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("camera: failed to create pipeline: %w", err)
	}

	fit, err := pipeline.GetElementByName("fit")
	if err != nil {
		return nil, fmt.Errorf("camera: capsfilter not found: %w", err)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("camera: failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)    // No sync with clock (real-time)
	sink.SetProperty("max-buffers", 1) // Keep only latest frame
	sink.SetProperty("drop", true)     // Drop old frames

	if err := pipeline.Add(sink.Element); err != nil {
		return nil, fmt.Errorf("camera: failed to add appsink: %w", err)
	}
	if err := fit.Link(sink.Element); err != nil {
		return nil, fmt.Errorf("camera: failed to link appsink: %w", err)
	}

	c := &GstCamera{
		pipeline: pipeline,
		sink:     sink,
		frames:   make(chan types.Frame, 1),
		width:    cfg.Width,
		height:   cfg.Height,
		timeout:  cfg.Timeout,
	}

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: c.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("camera: failed to start pipeline: %w", err)
	}

	slog.Info("camera: gst pipeline started",
		"source", sourceDescription(cfg),
		"width", cfg.Width,
		"height", cfg.Height,
	)

	return c, nil
}

// onNewSample runs on the GStreamer streaming thread. It copies the
// buffer and keeps only the most recent frame.
func (c *GstCamera) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("camera: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("camera: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("camera: empty buffer received")
		return gst.FlowOK
	}

	// Copy frame data (GStreamer will reuse buffer)
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	packed, err := packRows(frameData, c.width, c.height)
	if err != nil {
		slog.Warn("camera: unexpected buffer layout, skipping frame", "error", err)
		return gst.FlowOK
	}

	frame := types.Frame{
		Seq:       atomic.AddUint64(&c.frameCount, 1),
		Timestamp: time.Now(),
		Width:     c.width,
		Height:    c.height,
		Data:      packed,
		Source:    "gst",
		TraceID:   uuid.New().String(),
	}

	// replace a stale frame nobody picked up
	select {
	case <-c.frames:
		atomic.AddUint64(&c.framesDropped, 1)
	default:
	}
	select {
	case c.frames <- frame:
	default:
		atomic.AddUint64(&c.framesDropped, 1)
	}

	return gst.FlowOK
}

// Capture discards any buffered frame and waits for the next one.
func (c *GstCamera) Capture(ctx context.Context) (types.Frame, error) {
	select {
	case <-c.frames:
	default:
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case frame := <-c.frames:
		return frame, nil
	case <-ctx.Done():
		return types.Frame{}, fmt.Errorf("%w: %v", ErrCapture, ctx.Err())
	case <-timer.C:
		if err := c.busError(); err != nil {
			return types.Frame{}, fmt.Errorf("%w: %v", ErrCapture, err)
		}
		return types.Frame{}, fmt.Errorf("%w: no frame within %v", ErrCapture, c.timeout)
	}
}

// busError drains pending bus messages and returns the first error.
func (c *GstCamera) busError() error {
	bus := c.pipeline.GetPipelineBus()
	var first error
	for msg := bus.Pop(); msg != nil; msg = bus.Pop() {
		if msg.Type() != gst.MessageError || first != nil {
			continue
		}
		gerr := msg.ParseError()
		slog.Error("camera: pipeline error",
			"error", gerr.Error(),
			"debug", gerr.DebugString(),
		)
		first = gerr
	}
	return first
}

// Close stops the pipeline and releases the device.
func (c *GstCamera) Close() error {
	c.closeOnce.Do(func() {
		if err := c.pipeline.SetState(gst.StateNull); err != nil {
			c.closeErr = fmt.Errorf("camera: failed to set pipeline to NULL: %w", err)
		}
		slog.Info("camera: gst pipeline stopped",
			"frames_received", atomic.LoadUint64(&c.frameCount),
			"frames_dropped", atomic.LoadUint64(&c.framesDropped),
		)
	})
	return c.closeErr
}
