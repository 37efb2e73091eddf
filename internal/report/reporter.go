package report

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/multierr"
)

// CountPublisher sends a count to a remote sink.
type CountPublisher interface {
	Publish(count int) error
}

// Reporter fans a count out to the display and the optional publisher.
type Reporter struct {
	Display   Display
	Publisher CountPublisher // nil when publishing is disabled
}

// Report attempts every sink. A failing sink never prevents the others;
// the returned error combines ErrDisplay and ErrPublish failures.
func (r *Reporter) Report(ctx context.Context, count int) error {
	var err error

	if r.Display != nil {
		if derr := r.Display.Show(ctx, strconv.Itoa(count)); derr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %v", ErrDisplay, derr))
		}
	}

	if r.Publisher != nil {
		if perr := r.Publisher.Publish(count); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %v", ErrPublish, perr))
		}
	}

	return err
}
