//go:build !no_tflite

package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tflite "github.com/mattn/go-tflite"

	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/types"
)

func init() {
	Register("tflite", func(cfg Config) (Model, error) {
		return NewTFLiteModel(cfg)
	})
}

// Output tensor order of the TFLite_Detection_PostProcess op.
const (
	outBoxes = iota
	outClasses
	outScores
	outCount
)

// TFLiteModel runs an SSD model with the TFLite interpreter, optionally
// through an EdgeTPU delegate.
type TFLiteModel struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	release     func()

	width  int
	height int

	closeOnce sync.Once
}

// NewTFLiteModel loads the model file and allocates tensors
func NewTFLiteModel(cfg Config) (*TFLiteModel, error) {
	m := &TFLiteModel{release: func() {}}

	m.model = tflite.NewModelFromFile(cfg.Path)
	if m.model == nil {
		return nil, fmt.Errorf("model: failed to load %s", cfg.Path)
	}

	m.options = tflite.NewInterpreterOptions()
	if m.options == nil {
		m.Close()
		return nil, fmt.Errorf("model: interpreter options failed to be created")
	}
	if cfg.Threads > 0 {
		m.options.SetNumThread(cfg.Threads)
	}
	m.options.SetErrorReporter(func(msg string, _ interface{}) {
		slog.Warn("model: tflite", "message", msg)
	}, nil)

	if cfg.EdgeTPU {
		release, err := addEdgeTPUDelegate(m.options)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.release = release
	}

	m.interpreter = tflite.NewInterpreter(m.model, m.options)
	if m.interpreter == nil {
		m.Close()
		return nil, fmt.Errorf("model: failed to create interpreter")
	}
	if status := m.interpreter.AllocateTensors(); status != tflite.OK {
		m.Close()
		return nil, fmt.Errorf("model: failed to allocate tensors: %v", status)
	}

	input := m.interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != types.BytesPerPixel {
		m.Close()
		return nil, fmt.Errorf("model: expected a [1,h,w,3] input tensor")
	}
	m.height = input.Dim(1)
	m.width = input.Dim(2)

	if n := m.interpreter.GetOutputTensorCount(); n < 4 {
		m.Close()
		return nil, fmt.Errorf("model: expected 4 output tensors, got %d", n)
	}

	slog.Info("model: tflite loaded",
		"path", cfg.Path,
		"input_width", m.width,
		"input_height", m.height,
		"input_type", input.Type().String(),
		"edgetpu", cfg.EdgeTPU,
	)

	return m, nil
}

// InputSize returns the input tensor width and height
func (m *TFLiteModel) InputSize() (int, int) {
	return m.width, m.height
}

// Infer copies the frame into the input tensor and runs the interpreter
func (m *TFLiteModel) Infer(ctx context.Context, frame types.Frame) (detection.RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return detection.RawOutput{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if err := checkFrame(frame, m.width, m.height); err != nil {
		return detection.RawOutput{}, err
	}

	input := m.interpreter.GetInputTensor(0)
	var status tflite.Status
	switch input.Type() {
	case tflite.UInt8:
		status = input.CopyFromBuffer(frame.Data)
	case tflite.Float32:
		status = input.CopyFromBuffer(normalize(frame.Data))
	default:
		return detection.RawOutput{}, fmt.Errorf("%w: unsupported input type %s", ErrInference, input.Type())
	}
	if status != tflite.OK {
		return detection.RawOutput{}, fmt.Errorf("%w: copying to buffer failed", ErrInference)
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return detection.RawOutput{}, fmt.Errorf("%w: invoke failed", ErrInference)
	}

	count := m.interpreter.GetOutputTensor(outCount).Float32s()
	if len(count) == 0 {
		return detection.RawOutput{}, fmt.Errorf("%w: empty count tensor", ErrInference)
	}

	return detection.RawOutput{
		Boxes:   copyFloats(m.interpreter.GetOutputTensor(outBoxes).Float32s()),
		Classes: copyFloats(m.interpreter.GetOutputTensor(outClasses).Float32s()),
		Scores:  copyFloats(m.interpreter.GetOutputTensor(outScores).Float32s()),
		Count:   count[0],
	}, nil
}

// Close deletes the interpreter, options, delegate and model
func (m *TFLiteModel) Close() error {
	m.closeOnce.Do(func() {
		if m.interpreter != nil {
			m.interpreter.Delete()
		}
		if m.options != nil {
			m.options.Delete()
		}
		m.release()
		if m.model != nil {
			m.model.Delete()
		}
	})
	return nil
}
