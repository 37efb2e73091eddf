//go:build !no_tflite && edgetpu

package model

import (
	"fmt"
	"log/slog"

	tflite "github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates/edgetpu"
)

// addEdgeTPUDelegate attaches the first EdgeTPU found.
func addEdgeTPUDelegate(options *tflite.InterpreterOptions) (func(), error) {
	devices, err := edgetpu.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("model: failed to list edgetpu devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("model: no edgetpu device found")
	}

	delegate := edgetpu.New(devices[0])
	if delegate == nil {
		return nil, fmt.Errorf("model: failed to create edgetpu delegate")
	}
	options.AddDelegate(delegate)

	slog.Info("model: edgetpu delegate attached",
		"device", devices[0].Path,
		"devices", len(devices),
	)

	return delegate.Delete, nil
}
