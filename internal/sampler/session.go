package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/enriquegit/edge-person-detector/internal/camera"
	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/model"
	"github.com/enriquegit/edge-person-detector/internal/report"
)

// ErrInit is returned when any resource fails to open.
var ErrInit = errors.New("initialization failed")

// Broker is the persistent connection used to publish counts.
type Broker interface {
	report.CountPublisher
	Disconnect() error
}

// Openers acquire the session resources. Broker is nil when publishing
// is disabled.
type Openers struct {
	Camera  func(ctx context.Context) (camera.Camera, error)
	Model   func(ctx context.Context) (model.Model, error)
	Labels  func(ctx context.Context) (detection.LabelResolver, error)
	Broker  func(ctx context.Context) (Broker, error)
	Display func(ctx context.Context) (report.Display, error)
}

// Session holds every resource that lives across cycles.
type Session struct {
	Camera  camera.Camera
	Model   model.Model
	Labels  detection.LabelResolver
	Broker  Broker // nil when publishing is disabled
	Display report.Display

	releases  []release
	closeOnce sync.Once
	closeErr  error
}

type release struct {
	name string
	fn   func() error
}

// Open acquires camera, model, labels, broker and display in that order.
// On failure everything already acquired is released in reverse order and
// the error wraps ErrInit.
func Open(ctx context.Context, o Openers) (*Session, error) {
	s := &Session{}

	fail := func(stage string, err error) (*Session, error) {
		if cerr := s.Close(); cerr != nil {
			slog.Warn("sampler: release after failed init", "error", cerr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInit, stage, err)
	}

	cam, err := o.Camera(ctx)
	if err != nil {
		return fail("camera", err)
	}
	s.Camera = cam
	s.track("camera", cam.Close)

	m, err := o.Model(ctx)
	if err != nil {
		return fail("model", err)
	}
	s.Model = m
	s.track("model", m.Close)

	lbls, err := o.Labels(ctx)
	if err != nil {
		return fail("labels", err)
	}
	s.Labels = lbls

	if o.Broker != nil {
		b, err := o.Broker(ctx)
		if err != nil {
			return fail("broker", err)
		}
		s.Broker = b
		s.track("broker", b.Disconnect)
	}

	if o.Display != nil {
		d, err := o.Display(ctx)
		if err != nil {
			return fail("display", err)
		}
		s.Display = d
		s.track("display", d.Close)
	}

	slog.Info("sampler: session opened",
		"publishing", s.Broker != nil,
	)

	return s, nil
}

func (s *Session) track(name string, fn func() error) {
	s.releases = append(s.releases, release{name: name, fn: fn})
}

// Close releases resources in reverse acquisition order, exactly once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		for i := len(s.releases) - 1; i >= 0; i-- {
			r := s.releases[i]
			if err := r.fn(); err != nil {
				s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("close %s: %w", r.name, err))
			}
			slog.Debug("sampler: released", "resource", r.name)
		}
	})
	return s.closeErr
}
