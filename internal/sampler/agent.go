package sampler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/report"
)

// Settings tune the sampling loop.
type Settings struct {
	Interval    time.Duration
	MaxCycles   int
	Threshold   float32
	TargetLabel string
	ScaleX      float64
	ScaleY      float64
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Agent drives the INIT → RUNNING → STOPPED|FAILED lifecycle.
type Agent struct {
	openers  Openers
	settings Settings

	state   atomic.Int32
	loop    atomic.Pointer[Loop]
	session atomic.Pointer[Session]
	started time.Time
}

// NewAgent creates an agent in StateInit
func NewAgent(openers Openers, settings Settings) *Agent {
	if settings.Clock == nil {
		settings.Clock = clock.New()
	}
	if settings.Logger == nil {
		settings.Logger = slog.Default()
	}
	return &Agent{
		openers:  openers,
		settings: settings,
		started:  settings.Clock.Now(),
	}
}

// Run opens the session, runs the loop until ctx is canceled or the cycle
// limit is reached, then closes the session. The returned error wraps
// ErrInit when initialization failed; a normal stop returns nil.
func (a *Agent) Run(ctx context.Context) error {
	log := a.settings.Logger
	a.setState(StateInit)

	session, err := Open(ctx, a.openers)
	if err != nil {
		a.setState(StateFailed)
		log.Error("sampler: initialization failed", "error", err)
		return err
	}
	a.session.Store(session)

	loop := &Loop{
		Camera: session.Camera,
		Model:  session.Model,
		Counter: detection.Counter{
			Threshold: a.settings.Threshold,
			Target:    a.settings.TargetLabel,
			Labels:    session.Labels,
		},
		Reporter:  a.reporter(session),
		ScaleX:    a.settings.ScaleX,
		ScaleY:    a.settings.ScaleY,
		Interval:  a.settings.Interval,
		MaxCycles: a.settings.MaxCycles,
		Clock:     a.settings.Clock,
		Logger:    log,
	}
	a.loop.Store(loop)

	a.setState(StateRunning)
	log.Info("sampler: running",
		"interval", a.settings.Interval,
		"max_cycles", a.settings.MaxCycles,
		"threshold", a.settings.Threshold,
		"target_label", a.settings.TargetLabel,
	)

	runErr := loop.Run(ctx)

	if err := session.Close(); err != nil {
		log.Warn("sampler: errors while releasing session", "error", err)
	}
	a.setState(StateStopped)

	log.Info("sampler: stopped",
		"cycles", loop.Stats().Cycles,
		"uptime", a.settings.Clock.Since(a.started),
	)

	return runErr
}

func (a *Agent) reporter(s *Session) *report.Reporter {
	r := &report.Reporter{Display: s.Display}
	if s.Broker != nil {
		r.Publisher = s.Broker
	}
	return r
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
	a.settings.Logger.Debug("sampler: state changed", "state", s.String())
}

// State returns the current lifecycle state
func (a *Agent) State() State {
	return State(a.state.Load())
}

// Stats returns loop statistics; zero before RUNNING.
func (a *Agent) Stats() Stats {
	if l := a.loop.Load(); l != nil {
		return l.Stats()
	}
	return Stats{}
}

// Uptime is the time since the agent was created.
func (a *Agent) Uptime() time.Duration {
	return a.settings.Clock.Since(a.started)
}

// PublisherStats returns broker statistics when the broker exposes them.
func (a *Agent) PublisherStats() (report.PublisherStats, bool) {
	s := a.session.Load()
	if s == nil || s.Broker == nil {
		return report.PublisherStats{}, false
	}
	if p, ok := s.Broker.(interface{ Stats() report.PublisherStats }); ok {
		return p.Stats(), true
	}
	return report.PublisherStats{}, false
}
