//go:build no_periph

package report

import (
	"fmt"
	"time"
)

// OpenSenseHat is unavailable in builds without periph.
func OpenSenseHat(string, time.Duration) (Display, error) {
	return nil, fmt.Errorf("sensehat: binary built with no_periph")
}
