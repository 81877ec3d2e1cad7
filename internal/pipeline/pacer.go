package pipeline

import (
	"context"
	"time"
)

// Pacer suspends the current cycle between detail fetches.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// SleepPacer blocks the calling goroutine for d. Other cycles are unaffected.
type SleepPacer struct{}

// Pause waits for d or until ctx is done.
func (SleepPacer) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
