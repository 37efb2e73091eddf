package sampler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/enriquegit/edge-person-detector/internal/camera"
	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/model"
	"github.com/enriquegit/edge-person-detector/internal/report"
)

// Reporter delivers a count to every sink.
type Reporter interface {
	Report(ctx context.Context, count int) error
}

// Loop runs capture → fit → infer → decode → count → report → sleep.
type Loop struct {
	Camera   camera.Camera
	Model    model.Model
	Counter  detection.Counter
	Reporter Reporter
	// ScaleX and ScaleY complete the projection; the input size comes from the model
	ScaleX float64
	ScaleY float64
	// Interval is the pause after every cycle, including failed ones
	Interval time.Duration
	// MaxCycles stops the loop after that many cycles; 0 runs until canceled
	MaxCycles int
	Clock     clock.Clock
	Logger    *slog.Logger

	stats loopStats
}

type loopStats struct {
	cycles            atomic.Uint64
	reported          atomic.Uint64
	captureFailures   atomic.Uint64
	inferenceFailures atomic.Uint64
	decodeFailures    atomic.Uint64
	displayFailures   atomic.Uint64
	publishFailures   atomic.Uint64
	lastCount         atomic.Int64
	lastCycleAt       atomic.Int64 // unix nanos, 0 before the first cycle
}

// Stats contains loop statistics
type Stats struct {
	Cycles            uint64    `json:"cycles"`
	Reported          uint64    `json:"reported"`
	CaptureFailures   uint64    `json:"capture_failures"`
	InferenceFailures uint64    `json:"inference_failures"`
	DecodeFailures    uint64    `json:"decode_failures"`
	DisplayFailures   uint64    `json:"display_failures"`
	PublishFailures   uint64    `json:"publish_failures"`
	LastCount         int       `json:"last_count"`
	LastCycleAt       time.Time `json:"last_cycle_at,omitempty"`
}

// Stats returns a snapshot; safe to call from any goroutine.
func (l *Loop) Stats() Stats {
	s := Stats{
		Cycles:            l.stats.cycles.Load(),
		Reported:          l.stats.reported.Load(),
		CaptureFailures:   l.stats.captureFailures.Load(),
		InferenceFailures: l.stats.inferenceFailures.Load(),
		DecodeFailures:    l.stats.decodeFailures.Load(),
		DisplayFailures:   l.stats.displayFailures.Load(),
		PublishFailures:   l.stats.publishFailures.Load(),
		LastCount:         int(l.stats.lastCount.Load()),
	}
	if ns := l.stats.lastCycleAt.Load(); ns != 0 {
		s.LastCycleAt = time.Unix(0, ns)
	}
	return s
}

func (l *Loop) setDefaults() {
	if l.Clock == nil {
		l.Clock = clock.New()
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
}

// Run executes cycles until ctx is canceled or MaxCycles is reached.
// Cycle failures are logged and never end the loop. Stage calls use a
// context detached from ctx so a stop request never interrupts a cycle.
func (l *Loop) Run(ctx context.Context) error {
	l.setDefaults()
	stageCtx := context.WithoutCancel(ctx)

	for ctx.Err() == nil {
		l.Cycle(stageCtx)

		select {
		case <-l.Clock.After(l.Interval):
		case <-ctx.Done():
		}

		if l.MaxCycles > 0 && l.stats.cycles.Load() >= uint64(l.MaxCycles) {
			l.Logger.Info("sampler: cycle limit reached", "cycles", l.MaxCycles)
			return nil
		}
	}

	l.Logger.Info("sampler: stop requested", "cycles", l.stats.cycles.Load())
	return nil
}

// Cycle runs one sampling cycle and reports whether a count was produced.
func (l *Loop) Cycle(ctx context.Context) (int, bool) {
	l.setDefaults()
	log := l.Logger.With("trace_id", uuid.NewString())
	start := l.Clock.Now()

	defer func() {
		l.stats.cycles.Add(1)
		l.stats.lastCycleAt.Store(l.Clock.Now().UnixNano())
	}()

	frame, err := l.Camera.Capture(ctx)
	if err != nil {
		l.stats.captureFailures.Add(1)
		log.Warn("sampler: capture failed, skipping cycle", "error", err)
		return 0, false
	}
	if frame.TraceID != "" {
		log = l.Logger.With("trace_id", frame.TraceID)
	}

	width, height := l.Model.InputSize()
	fitted := frame.Fit(width, height)

	out, err := l.Model.Infer(ctx, fitted)
	if err != nil {
		l.stats.inferenceFailures.Add(1)
		log.Warn("sampler: inference failed, skipping cycle", "error", err, "frame_seq", frame.Seq)
		return 0, false
	}

	dets, err := detection.Decode(out, detection.Projection{
		InputWidth:  width,
		InputHeight: height,
		ScaleX:      l.ScaleX,
		ScaleY:      l.ScaleY,
	})
	if err != nil {
		l.stats.decodeFailures.Add(1)
		log.Warn("sampler: invalid model output, skipping cycle", "error", err, "frame_seq", frame.Seq)
		return 0, false
	}

	counter := l.Counter
	counter.Logger = log
	count := counter.Count(dets)
	l.stats.lastCount.Store(int64(count))

	if err := l.Reporter.Report(ctx, count); err != nil {
		if errors.Is(err, report.ErrDisplay) {
			l.stats.displayFailures.Add(1)
		}
		if errors.Is(err, report.ErrPublish) {
			l.stats.publishFailures.Add(1)
		}
		log.Warn("sampler: report incomplete", "error", err, "count", count)
	} else {
		l.stats.reported.Add(1)
	}

	log.Info("sampler: cycle complete",
		"frame_seq", frame.Seq,
		"detections", len(dets),
		"count", count,
		"duration", l.Clock.Since(start),
	)

	return count, true
}
