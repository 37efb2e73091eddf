//go:build !no_periph

package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// senseHatAddr is the I2C address of the Sense HAT LED controller.
const senseHatAddr = 0x46

// SenseHat is the Raspberry Pi Sense HAT LED matrix.
type SenseHat struct {
	*LEDMatrix
	bus i2c.BusCloser
}

// OpenSenseHat opens busName (empty picks the first bus) and blanks the matrix.
func OpenSenseHat(busName string, speed time.Duration) (*SenseHat, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("sensehat: host init failed: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("sensehat: failed to open i2c bus %q: %w", busName, err)
	}

	dev := &i2c.Dev{Bus: bus, Addr: senseHatAddr}
	s := &SenseHat{
		LEDMatrix: NewLEDMatrix(dev, speed, clock.New()),
		bus:       bus,
	}

	if err := s.Clear(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("sensehat: %w", err)
	}

	slog.Info("sensehat: led matrix ready", "bus", bus.String(), "addr", senseHatAddr)
	return s, nil
}

// Close blanks the matrix and releases the bus
func (s *SenseHat) Close() error {
	clearErr := s.Clear()
	if err := s.bus.Close(); err != nil {
		return err
	}
	return clearErr
}
