package verification

import (
	"context"
	"time"
)

// Scheduler suspends the poll loop between attempts.
type Scheduler interface {
	Wait(ctx context.Context, d time.Duration) error
}

type TimerScheduler struct{}

func (TimerScheduler) Wait(ctx context.Context, d time.Duration) error {
	return sleepOrDone(ctx, d)
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
