package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/enriquegit/edge-person-detector/internal/camera"
	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/model"
	"github.com/enriquegit/edge-person-detector/internal/report"
	"github.com/enriquegit/edge-person-detector/internal/types"
)

// releaseLog records the order resources are closed in.
type releaseLog struct {
	mu    sync.Mutex
	order []string
}

func (r *releaseLog) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *releaseLog) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

type fakeCamera struct {
	log   *releaseLog
	fails map[int]bool // call index -> fail
	calls int
	hook  func()
}

func (c *fakeCamera) Capture(ctx context.Context) (types.Frame, error) {
	defer func() { c.calls++ }()
	if c.hook != nil {
		c.hook()
	}
	if c.fails[c.calls] {
		return types.Frame{}, camera.ErrCapture
	}
	return types.Frame{
		Seq:     uint64(c.calls),
		Width:   2,
		Height:  2,
		Data:    make([]byte, 12),
		TraceID: fmt.Sprintf("frame-%d", c.calls),
	}, nil
}

func (c *fakeCamera) Close() error {
	if c.log != nil {
		c.log.add("camera")
	}
	return nil
}

type fakeModel struct {
	log    *releaseLog
	output detection.RawOutput
	fails  map[int]bool
	calls  int
	ctxErr []error
}

func (m *fakeModel) InputSize() (int, int) { return 4, 4 }

func (m *fakeModel) Infer(ctx context.Context, frame types.Frame) (detection.RawOutput, error) {
	defer func() { m.calls++ }()
	m.ctxErr = append(m.ctxErr, ctx.Err())
	if frame.Width != 4 || frame.Height != 4 || !frame.Valid() {
		return detection.RawOutput{}, errors.New("frame not fitted")
	}
	if m.fails[m.calls] {
		return detection.RawOutput{}, model.ErrInference
	}
	return m.output, nil
}

func (m *fakeModel) Close() error {
	if m.log != nil {
		m.log.add("model")
	}
	return nil
}

type fakeBroker struct {
	log      *releaseLog
	err      error
	mu       sync.Mutex
	payloads []int
}

func (b *fakeBroker) Publish(count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, count)
	return b.err
}

func (b *fakeBroker) Disconnect() error {
	if b.log != nil {
		b.log.add("broker")
	}
	return nil
}

type fakeDisplay struct {
	log   *releaseLog
	shown chan string
}

func newFakeDisplay(log *releaseLog) *fakeDisplay {
	return &fakeDisplay{log: log, shown: make(chan string, 100)}
}

func (d *fakeDisplay) Show(_ context.Context, text string) error {
	d.shown <- text
	return nil
}

func (d *fakeDisplay) Close() error {
	if d.log != nil {
		d.log.add("display")
	}
	return nil
}

type mapLabels map[int]string

func (m mapLabels) Lookup(id int) (string, bool) {
	l, ok := m[id]
	return l, ok
}

// scenarioOutput has two persons (0.7, 0.5) and a cat (0.9).
var scenarioOutput = detection.RawOutput{
	Boxes:   []float32{0, 0, 0.5, 0.5, 0.1, 0.1, 0.6, 0.6, 0.2, 0.2, 0.9, 0.9},
	Classes: []float32{0, 0, 1},
	Scores:  []float32{0.7, 0.5, 0.9},
	Count:   3,
}

var _ report.Display = (*fakeDisplay)(nil)
