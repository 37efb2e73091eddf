package sampler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enriquegit/edge-person-detector/internal/camera"
	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/model"
	"github.com/enriquegit/edge-person-detector/internal/report"
)

const interval = 3 * time.Second

// drive runs fn while advancing the mock clock until fn returns.
func drive(t *testing.T, mock *clock.Mock, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			return err
		case <-deadline:
			t.Fatal("loop did not finish")
			return nil
		case <-time.After(time.Millisecond):
			mock.Add(interval)
		}
	}
}

func testOpeners(log *releaseLog, cam *fakeCamera, m *fakeModel, broker *fakeBroker, display *fakeDisplay) Openers {
	o := Openers{
		Camera: func(context.Context) (camera.Camera, error) { return cam, nil },
		Model:  func(context.Context) (model.Model, error) { return m, nil },
		Labels: func(context.Context) (detection.LabelResolver, error) {
			return mapLabels{0: "person", 1: "cat"}, nil
		},
	}
	if display != nil {
		o.Display = func(context.Context) (report.Display, error) { return display, nil }
	}
	if broker != nil {
		o.Broker = func(context.Context) (Broker, error) { return broker, nil }
	}
	return o
}

func TestAgent_BoundedRunStopsAndReleasesInReverse(t *testing.T) {
	log := &releaseLog{}
	cam := &fakeCamera{log: log}
	m := &fakeModel{log: log, output: scenarioOutput}
	broker := &fakeBroker{log: log}
	display := newFakeDisplay(log)
	mock := clock.NewMock()

	agent := NewAgent(testOpeners(log, cam, m, broker, display), Settings{
		Interval:    interval,
		MaxCycles:   3,
		Threshold:   0.6,
		TargetLabel: "person",
		Clock:       mock,
	})
	assert.Equal(t, StateInit, agent.State())

	err := drive(t, mock, func() error { return agent.Run(context.Background()) })
	require.NoError(t, err)

	assert.Equal(t, StateStopped, agent.State())
	assert.Equal(t, uint64(3), agent.Stats().Cycles)
	assert.Equal(t, 3, cam.calls)
	assert.Equal(t, []int{1, 1, 1}, broker.payloads)
	assert.Len(t, display.shown, 3)
	assert.Equal(t, []string{"display", "broker", "model", "camera"}, log.get())
}

func TestAgent_InitFailureReleasesAcquired(t *testing.T) {
	log := &releaseLog{}
	cam := &fakeCamera{log: log}
	m := &fakeModel{log: log}
	o := testOpeners(log, cam, m, nil, newFakeDisplay(log))
	o.Broker = func(context.Context) (Broker, error) {
		return nil, errors.New("connection refused")
	}

	agent := NewAgent(o, Settings{Interval: interval})
	err := agent.Run(context.Background())

	assert.ErrorIs(t, err, ErrInit)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, StateFailed, agent.State())
	assert.Equal(t, []string{"model", "camera"}, log.get())
	assert.Zero(t, cam.calls)
}

func TestOpen_LabelFailure(t *testing.T) {
	log := &releaseLog{}
	o := testOpeners(log, &fakeCamera{log: log}, &fakeModel{log: log}, nil, nil)
	o.Labels = func(context.Context) (detection.LabelResolver, error) {
		return nil, errors.New("no such file")
	}

	_, err := Open(context.Background(), o)

	assert.ErrorIs(t, err, ErrInit)
	assert.Equal(t, []string{"model", "camera"}, log.get())
}

func TestSession_CloseOnce(t *testing.T) {
	log := &releaseLog{}
	s, err := Open(context.Background(), testOpeners(log, &fakeCamera{log: log}, &fakeModel{log: log}, nil, nil))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"model", "camera"}, log.get())
}

func newLoop(cam *fakeCamera, m *fakeModel, r Reporter, mock *clock.Mock, maxCycles int) *Loop {
	return &Loop{
		Camera: cam,
		Model:  m,
		Counter: detection.Counter{
			Threshold: 0.6,
			Target:    "person",
			Labels:    mapLabels{0: "person", 1: "cat"},
		},
		Reporter:  r,
		Interval:  interval,
		MaxCycles: maxCycles,
		Clock:     mock,
	}
}

func TestLoop_PublishFailureStillDisplaysAndSleeps(t *testing.T) {
	display := newFakeDisplay(nil)
	broker := &fakeBroker{err: errors.New("mqtt not connected")}
	mock := clock.NewMock()
	loop := newLoop(&fakeCamera{}, &fakeModel{output: scenarioOutput},
		&report.Reporter{Display: display, Publisher: broker}, mock, 2)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	assert.Equal(t, "1", <-display.shown)

	// nothing happens until the interval elapses
	select {
	case <-display.shown:
		t.Fatal("second cycle ran without sleeping")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, drive(t, mock, func() error { return <-done }))
	assert.Equal(t, "1", <-display.shown)

	stats := loop.Stats()
	assert.Equal(t, uint64(2), stats.Cycles)
	assert.Equal(t, uint64(2), stats.PublishFailures)
	assert.Zero(t, stats.DisplayFailures)
	assert.Equal(t, 1, stats.LastCount)
	assert.Equal(t, []int{1, 1}, broker.payloads)
}

func TestLoop_CycleFailuresDoNotStop(t *testing.T) {
	display := newFakeDisplay(nil)
	mock := clock.NewMock()
	cam := &fakeCamera{fails: map[int]bool{0: true}}
	m := &fakeModel{output: scenarioOutput, fails: map[int]bool{0: true}}
	loop := newLoop(cam, m, &report.Reporter{Display: display}, mock, 3)

	require.NoError(t, drive(t, mock, func() error { return loop.Run(context.Background()) }))

	stats := loop.Stats()
	assert.Equal(t, uint64(3), stats.Cycles)
	assert.Equal(t, uint64(1), stats.CaptureFailures)
	assert.Equal(t, uint64(1), stats.InferenceFailures)
	assert.Equal(t, uint64(1), stats.Reported)
	assert.Len(t, display.shown, 1)
}

func TestLoop_InvalidOutputSkipsReport(t *testing.T) {
	display := newFakeDisplay(nil)
	m := &fakeModel{output: detection.RawOutput{Count: 5}}
	loop := newLoop(&fakeCamera{}, m, &report.Reporter{Display: display}, clock.NewMock(), 1)

	_, ok := loop.Cycle(context.Background())

	assert.False(t, ok)
	assert.Equal(t, uint64(1), loop.Stats().DecodeFailures)
	assert.Empty(t, display.shown)
}

func TestLoop_LogsCarryFrameTraceID(t *testing.T) {
	var buf bytes.Buffer
	loop := newLoop(&fakeCamera{}, &fakeModel{output: scenarioOutput},
		&report.Reporter{Display: newFakeDisplay(nil)}, clock.NewMock(), 1)
	loop.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, ok := loop.Cycle(context.Background())
	require.True(t, ok)

	logs := buf.String()
	assert.Contains(t, logs, "sampler: cycle complete")
	assert.Contains(t, logs, `"trace_id":"frame-0"`)
	assert.Equal(t, strings.Count(logs, `"trace_id":`), strings.Count(logs, `"trace_id":"frame-0"`))
}

func TestLoop_StopDuringSleep(t *testing.T) {
	display := newFakeDisplay(nil)
	loop := newLoop(&fakeCamera{}, &fakeModel{output: scenarioOutput},
		&report.Reporter{Display: display}, clock.NewMock(), 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	<-display.shown
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop ignored cancellation")
	}
	assert.Equal(t, uint64(1), loop.Stats().Cycles)
}

func TestLoop_StopNeverAbortsCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cam := &fakeCamera{hook: cancel}
	m := &fakeModel{output: scenarioOutput}
	display := newFakeDisplay(nil)
	loop := newLoop(cam, m, &report.Reporter{Display: display}, clock.NewMock(), 0)

	require.NoError(t, loop.Run(ctx))

	// canceled during capture, yet inference and report still happened
	assert.Equal(t, []error{nil}, m.ctxErr)
	assert.Equal(t, "1", <-display.shown)
	assert.Equal(t, uint64(1), loop.Stats().Cycles)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInit, "init"},
		{StateRunning, "running"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
