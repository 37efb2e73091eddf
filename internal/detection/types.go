// Package detection turns raw object-detection model outputs into
// detections and counts the ones that match a target class.
package detection

import "errors"

// ErrInvalidModelOutput is returned when output tensors are shorter than
// the detection count they report.
var ErrInvalidModelOutput = errors.New("invalid model output")

// BoundingBox is a box in image pixel coordinates.
type BoundingBox struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// Detection is one object reported by the model for a single frame.
type Detection struct {
	ClassID int         `json:"class_id"`
	Score   float32     `json:"score"`
	BBox    BoundingBox `json:"bbox"`
}

// RawOutput holds the four output tensors of an SSD-style detection model
// with post-processing built in.
type RawOutput struct {
	// Boxes has 4 values per entry: ymin, xmin, ymax, xmax (normalized)
	Boxes []float32
	// Classes has one class index per entry
	Classes []float32
	// Scores has one confidence per entry
	Scores []float32
	// Count is the number of valid entries; anything past it is padding
	Count float32
}

// Projection maps normalized model coordinates onto image pixels.
type Projection struct {
	// InputWidth and InputHeight are the model's input resolution
	InputWidth  int
	InputHeight int
	// ScaleX and ScaleY are the ratio between the model input and the
	// image the boxes should land on. Zero means 1.
	ScaleX float64
	ScaleY float64
}

// factors returns the multipliers applied to normalized x and y.
func (p Projection) factors() (sx, sy float64) {
	scaleX, scaleY := p.ScaleX, p.ScaleY
	if scaleX == 0 {
		scaleX = 1
	}
	if scaleY == 0 {
		scaleY = 1
	}
	return float64(p.InputWidth) / scaleX, float64(p.InputHeight) / scaleY
}
