package musicbrainz

import (
	"context"
	"time"
)

// MinInterval is the spacing MusicBrainz asks anonymous clients to keep between
// request starts.
const MinInterval = time.Second

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SleepUntil blocks until deadline has passed. A zero or past deadline returns
// immediately.
func SleepUntil(ctx context.Context, deadline time.Time) error {
	if deadline.IsZero() {
		return nil
	}
	return SleepWithContext(ctx, time.Until(deadline))
}
