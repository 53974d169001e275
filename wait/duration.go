package wait

import (
	"context"
	"fmt"
	"time"
)

// DurationStrategy waits a fixed amount of time. It exists as a composition
// unit; prefer probing an observable condition instead.
type DurationStrategy struct {
	length time.Duration
}

// ForDuration waits for d to elapse.
func ForDuration(d time.Duration) *DurationStrategy {
	return &DurationStrategy{length: d}
}

func (s *DurationStrategy) String() string {
	return fmt.Sprintf("duration(%s)", s.length)
}

// WaitUntilReady sleeps, honoring cancellation.
func (s *DurationStrategy) WaitUntilReady(ctx context.Context, _ Target) error {
	timer := time.NewTimer(s.length)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
