// Package notify announces newly stored requests.
package notify

import (
	"context"
	"errors"

	"request-radar/internal/models"
)

// Notifier announces one stored request. Implementations must be safe for
// concurrent use: overlapping cycles share a single notifier.
type Notifier interface {
	Notify(ctx context.Context, cycleID string, req models.Request) error
}

// Fanout sends to every notifier and joins their errors. One failing channel
// does not stop the others.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, cycleID string, req models.Request) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, cycleID, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
