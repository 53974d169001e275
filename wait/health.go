package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/sethvargo/go-retry"
)

// ErrContainerExited is returned by strategies that need a running container
// when it already terminated.
var ErrContainerExited = errors.New("container exited while waiting for readiness")

// HealthStrategy waits for the container's healthcheck to report healthy.
type HealthStrategy struct {
	pollInterval time.Duration
	lastStatus   string
}

// ForHealth waits until the daemon reports health status healthy.
func ForHealth() *HealthStrategy {
	return &HealthStrategy{pollInterval: DefaultPollInterval}
}

// WithPollInterval overrides the poll interval, floored at 100ms.
func (s *HealthStrategy) WithPollInterval(d time.Duration) *HealthStrategy {
	if d >= DefaultPollInterval {
		s.pollInterval = d
	}
	return s
}

func (s *HealthStrategy) String() string { return "healthcheck" }

// Progress reports the last observed health status.
func (s *HealthStrategy) Progress() string {
	if s.lastStatus == "" {
		return "no health status observed"
	}
	return "last status " + s.lastStatus
}

// WaitUntilReady polls the container state until it is healthy.
func (s *HealthStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	return retry.Do(ctx, retry.NewConstant(s.pollInterval), func(ctx context.Context) error {
		state, err := target.Inspect(ctx)
		if err != nil {
			return err
		}
		if state.State == nil {
			return retry.RetryableError(errors.New("no state reported"))
		}
		if state.State.Status == "exited" || state.State.Status == "dead" {
			return ErrContainerExited
		}
		if state.State.Health == nil {
			return fmt.Errorf("image has no healthcheck configured")
		}
		s.lastStatus = string(state.State.Health.Status)
		if state.State.Health.Status != container.Healthy {
			return retry.RetryableError(fmt.Errorf("health status is %s", s.lastStatus))
		}
		return nil
	})
}
