package detection

import (
	"fmt"
	"math"
)

// Decode converts raw model outputs into detections, in model order.
//
// Only the first out.Count entries are read. Box coordinates are multiplied
// by the projection factors and then truncated toward zero. Scores and class
// indices are carried through; nothing is filtered.
func Decode(out RawOutput, p Projection) ([]Detection, error) {
	count, err := entryCount(out)
	if err != nil {
		return nil, err
	}

	sx, sy := p.factors()
	detections := make([]Detection, 0, count)
	for i := 0; i < count; i++ {
		ymin := float64(out.Boxes[4*i])
		xmin := float64(out.Boxes[4*i+1])
		ymax := float64(out.Boxes[4*i+2])
		xmax := float64(out.Boxes[4*i+3])

		detections = append(detections, Detection{
			ClassID: int(out.Classes[i]),
			Score:   out.Scores[i],
			BBox: BoundingBox{
				XMin: int(xmin * sx),
				YMin: int(ymin * sy),
				XMax: int(xmax * sx),
				YMax: int(ymax * sy),
			},
		})
	}

	return detections, nil
}

// entryCount validates the count tensor against the array lengths.
func entryCount(out RawOutput) (int, error) {
	c := float64(out.Count)
	if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
		return 0, fmt.Errorf("%w: detection count %v", ErrInvalidModelOutput, out.Count)
	}
	// bound before converting so a huge count cannot overflow int
	if math.Trunc(c) > float64(len(out.Scores)) {
		return 0, fmt.Errorf("%w: %d scores for %v detections",
			ErrInvalidModelOutput, len(out.Scores), out.Count)
	}

	count := int(c)
	switch {
	case len(out.Boxes) < 4*count:
		return 0, fmt.Errorf("%w: %d box values for %d detections",
			ErrInvalidModelOutput, len(out.Boxes), count)
	case len(out.Classes) < count:
		return 0, fmt.Errorf("%w: %d classes for %d detections",
			ErrInvalidModelOutput, len(out.Classes), count)
	}

	return count, nil
}
