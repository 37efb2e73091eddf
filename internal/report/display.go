// Package report delivers per-cycle counts to a local display and,
// optionally, to an MQTT broker.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"go.uber.org/multierr"
)

var (
	// ErrDisplay is returned when the local display cannot render a count.
	ErrDisplay = errors.New("display failed")
	// ErrPublish is returned when a count cannot be handed to the broker.
	ErrPublish = errors.New("publish failed")
)

// Display renders short text locally.
type Display interface {
	Show(ctx context.Context, text string) error
	Close() error
}

// ConsoleDisplay writes one line per count to a terminal or log stream.
type ConsoleDisplay struct {
	out   io.Writer
	label *color.Color
}

// NewConsoleDisplay writes to out. Color is disabled automatically when
// out is not a terminal.
func NewConsoleDisplay(out io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{
		out:   out,
		label: color.New(color.FgGreen, color.Bold),
	}
}

// Show prints "Persons count: <text>".
func (d *ConsoleDisplay) Show(_ context.Context, text string) error {
	_, err := fmt.Fprintf(d.out, "%s %s\n", d.label.Sprint("Persons count:"), text)
	return err
}

// Close is a no-op.
func (d *ConsoleDisplay) Close() error {
	return nil
}

// Displays shows the same text on several displays.
type Displays []Display

// Show tries every display and combines their errors.
func (ds Displays) Show(ctx context.Context, text string) error {
	var err error
	for _, d := range ds {
		err = multierr.Append(err, d.Show(ctx, text))
	}
	return err
}

// Close closes every display in reverse order.
func (ds Displays) Close() error {
	var err error
	for i := len(ds) - 1; i >= 0; i-- {
		err = multierr.Append(err, ds[i].Close())
	}
	return err
}
