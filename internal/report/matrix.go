package report

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	matrixSize = 8
	// one row is 8 red, 8 green then 8 blue values
	matrixFrameBytes = matrixSize * matrixSize * 3
	// glyphs are drawn on rows 1..5
	glyphTop = 1
)

// RGB5 is a color with 5-bit channels (0..31).
type RGB5 struct {
	R, G, B uint8
}

// FrameWriter accepts a full framebuffer write, register address first.
type FrameWriter interface {
	Tx(w, r []byte) error
}

// LEDMatrix scrolls text across an 8x8 RGB LED matrix.
type LEDMatrix struct {
	dev   FrameWriter
	color RGB5
	speed time.Duration
	clock clock.Clock
}

// NewLEDMatrix drives dev, advancing one column every speed.
func NewLEDMatrix(dev FrameWriter, speed time.Duration, clk clock.Clock) *LEDMatrix {
	if clk == nil {
		clk = clock.New()
	}
	return &LEDMatrix{
		dev:   dev,
		color: RGB5{R: 31, G: 31, B: 31},
		speed: speed,
		clock: clk,
	}
}

// Show scrolls text in from the right until it has fully left on the
// left, then blanks the matrix.
func (m *LEDMatrix) Show(ctx context.Context, text string) error {
	cols := make([]column, matrixSize)
	cols = append(cols, renderColumns(text)...)
	cols = append(cols, make([]column, matrixSize)...)

	for offset := 0; offset+matrixSize <= len(cols); offset++ {
		if err := m.write(composeFrame(cols[offset:offset+matrixSize], m.color)); err != nil {
			return err
		}
		select {
		case <-m.clock.After(m.speed):
		case <-ctx.Done():
			return m.Clear()
		}
	}

	return nil
}

// Clear turns every pixel off.
func (m *LEDMatrix) Clear() error {
	return m.write(make([]byte, matrixFrameBytes))
}

func (m *LEDMatrix) write(frame []byte) error {
	buf := make([]byte, 1+len(frame))
	copy(buf[1:], frame) // register 0
	if err := m.dev.Tx(buf, nil); err != nil {
		return fmt.Errorf("led matrix write: %w", err)
	}
	return nil
}

// composeFrame renders 8 columns into the matrix framebuffer layout.
func composeFrame(cols []column, c RGB5) []byte {
	frame := make([]byte, matrixFrameBytes)
	for x, col := range cols {
		for y := 0; y < glyphHeight; y++ {
			if !col[y] {
				continue
			}
			row := (glyphTop + y) * matrixSize * 3
			frame[row+x] = c.R
			frame[row+matrixSize+x] = c.G
			frame[row+2*matrixSize+x] = c.B
		}
	}
	return frame
}
