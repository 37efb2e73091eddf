//go:build !no_onnx

package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/types"
)

func init() {
	Register("onnx", func(cfg Config) (Model, error) {
		return NewONNXModel(cfg)
	})
}

// Tensor names of a TensorFlow object detection API SSD export.
var (
	onnxInputs  = []string{"image_tensor:0"}
	onnxOutputs = []string{"detection_boxes:0", "detection_classes:0", "detection_scores:0", "num_detections:0"}
)

var envOnce sync.Once

// initEnvironment starts the onnxruntime environment once per process.
func initEnvironment(library string) error {
	var err error
	envOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		err = ort.InitializeEnvironment()
	})
	return err
}

// ONNXModel runs an SSD export with onnxruntime. The input size is
// fixed by configuration since exported graphs usually have dynamic
// spatial dimensions.
type ONNXModel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[uint8]
	boxes   *ort.Tensor[float32]
	classes *ort.Tensor[float32]
	scores  *ort.Tensor[float32]
	count   *ort.Tensor[float32]

	width  int
	height int

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewONNXModel creates the session and its preallocated tensors
func NewONNXModel(cfg Config) (*ONNXModel, error) {
	if err := initEnvironment(cfg.Library); err != nil {
		return nil, fmt.Errorf("model: failed to initialize onnxruntime: %w", err)
	}

	width, height := cfg.InputWidth, cfg.InputHeight
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("model: onnx backend needs an input size, got %dx%d", width, height)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("model: error creating session options: %w", err)
	}
	defer options.Destroy()

	if cfg.Threads > 0 {
		options.SetIntraOpNumThreads(cfg.Threads)
	}

	m := &ONNXModel{width: width, height: height}

	n := int64(cfg.MaxDetections)
	if m.input, err = ort.NewEmptyTensor[uint8](ort.NewShape(1, int64(height), int64(width), types.BytesPerPixel)); err != nil {
		return nil, fmt.Errorf("model: error creating input tensor: %w", err)
	}
	if m.boxes, err = ort.NewEmptyTensor[float32](ort.NewShape(1, n, 4)); err != nil {
		m.Close()
		return nil, fmt.Errorf("model: error creating boxes tensor: %w", err)
	}
	if m.classes, err = ort.NewEmptyTensor[float32](ort.NewShape(1, n)); err != nil {
		m.Close()
		return nil, fmt.Errorf("model: error creating classes tensor: %w", err)
	}
	if m.scores, err = ort.NewEmptyTensor[float32](ort.NewShape(1, n)); err != nil {
		m.Close()
		return nil, fmt.Errorf("model: error creating scores tensor: %w", err)
	}
	if m.count, err = ort.NewEmptyTensor[float32](ort.NewShape(1)); err != nil {
		m.Close()
		return nil, fmt.Errorf("model: error creating count tensor: %w", err)
	}

	m.session, err = ort.NewAdvancedSession(
		cfg.Path,
		onnxInputs,
		onnxOutputs,
		[]ort.ArbitraryTensor{m.input},
		[]ort.ArbitraryTensor{m.boxes, m.classes, m.scores, m.count},
		options,
	)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("model: error creating session: %w", err)
	}

	slog.Info("model: onnx loaded",
		"path", cfg.Path,
		"input_width", width,
		"input_height", height,
		"max_detections", cfg.MaxDetections,
	)

	return m, nil
}

// InputSize returns the configured input width and height
func (m *ONNXModel) InputSize() (int, int) {
	return m.width, m.height
}

// Infer fills the input tensor and runs the session
func (m *ONNXModel) Infer(ctx context.Context, frame types.Frame) (detection.RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return detection.RawOutput{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if err := checkFrame(frame, m.width, m.height); err != nil {
		return detection.RawOutput{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), frame.Data)
	if err := m.session.Run(); err != nil {
		return detection.RawOutput{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	return detection.RawOutput{
		Boxes:   copyFloats(m.boxes.GetData()),
		Classes: copyFloats(m.classes.GetData()),
		Scores:  copyFloats(m.scores.GetData()),
		Count:   m.count.GetData()[0],
	}, nil
}

// Close destroys the session and its tensors
func (m *ONNXModel) Close() error {
	m.closeOnce.Do(func() {
		if m.session != nil {
			m.session.Destroy()
		}
		if m.input != nil {
			m.input.Destroy()
		}
		for _, t := range []*ort.Tensor[float32]{m.boxes, m.classes, m.scores, m.count} {
			if t != nil {
				t.Destroy()
			}
		}
	})
	return nil
}
