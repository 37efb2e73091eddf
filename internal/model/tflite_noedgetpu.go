//go:build !no_tflite && !edgetpu

package model

import (
	"fmt"

	tflite "github.com/mattn/go-tflite"
)

func addEdgeTPUDelegate(*tflite.InterpreterOptions) (func(), error) {
	return nil, fmt.Errorf("model: edgetpu requested but binary built without the edgetpu tag")
}
