package detection

import (
	"log/slog"
	"strconv"
)

// LabelResolver maps class indices to label names.
type LabelResolver interface {
	Lookup(classID int) (string, bool)
}

// Counter counts detections of one class above a score threshold.
//
// Overlapping boxes are not merged: two detections of the same person count
// twice.
type Counter struct {
	// Threshold is inclusive: a score equal to it counts
	Threshold float32
	// Target is the label to count, e.g. "person"
	Target string
	Labels LabelResolver
	// Logger receives one debug record per detection (nil = slog.Default)
	Logger *slog.Logger
}

// Count returns the number of detections with Score >= Threshold whose
// class resolves to Target. Classes missing from Labels never match.
func (c Counter) Count(detections []Detection) int {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := 0
	for _, d := range detections {
		label, known := c.resolve(d.ClassID)
		matched := known && label == c.Target && d.Score >= c.Threshold
		if matched {
			n++
		}

		logger.Debug("detection",
			"label", label,
			"known", known,
			"score", d.Score,
			"counted", matched,
		)
	}

	return n
}

// resolve falls back to the numeric class id for unknown classes.
func (c Counter) resolve(classID int) (string, bool) {
	if c.Labels != nil {
		if label, ok := c.Labels.Lookup(classID); ok {
			return label, true
		}
	}
	return strconv.Itoa(classID), false
}
