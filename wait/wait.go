// Package wait implements readiness probes evaluated against a starting
// container. Strategies are composed in order; every strategy must succeed
// within the startup budget for the container to be considered ready.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"github.com/irahardianto/drydock/logs"
)

// DefaultStartupTimeout bounds the readiness phase when the request does not
// override it. Image pull time never counts against this budget.
const DefaultStartupTimeout = 60 * time.Second

// DefaultPollInterval is the floor for strategies that poll the daemon.
const DefaultPollInterval = 100 * time.Millisecond

// Target is the view of a starting container that strategies probe.
// Implemented by the container handle.
type Target interface {
	// Host returns the daemon-facing host used to reach mapped ports.
	Host(ctx context.Context) (string, error)
	// MappedPort resolves the host port published for a container port.
	MappedPort(ctx context.Context, port nat.Port) (nat.Port, error)
	// Inspect returns the current daemon-side state of the container.
	Inspect(ctx context.Context) (container.InspectResponse, error)
	// Exec runs a command inside the container and returns its exit code.
	Exec(ctx context.Context, cmd []string) (int, error)
	// SubscribeLogs attaches a consumer to the container's log pump.
	// Only valid before the pump is started.
	SubscribeLogs(c logs.Consumer) *logs.Subscription
}

// Strategy is a single readiness condition.
type Strategy interface {
	// WaitUntilReady blocks until the condition is met, the context expires,
	// or the condition becomes impossible (a fatal error).
	WaitUntilReady(ctx context.Context, target Target) error
}

// Preparer is implemented by strategies that must observe the container from
// the very first log frame. Prepare runs for every strategy before the log
// pump starts, so probes registered here never miss early output even when
// they are evaluated late in the sequence.
type Preparer interface {
	Prepare(target Target)
}

// Progresser is implemented by strategies that can describe how far they got,
// for timeout diagnostics.
type Progresser interface {
	Progress() string
}

// TimeoutError reports which strategy was unmet when the startup budget ran out.
type TimeoutError struct {
	Strategy Strategy
	Elapsed  time.Duration
	Progress string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("startup timed out after %s waiting for %s", e.Elapsed.Round(time.Millisecond), describe(e.Strategy))
	if e.Progress != "" {
		msg += " (" + e.Progress + ")"
	}
	return msg
}

func describe(s Strategy) string {
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T", s)
}

// Prepare runs the Prepare phase of all strategies. The caller must invoke
// this before starting the container's log pump.
func Prepare(target Target, strategies []Strategy) {
	for _, s := range strategies {
		if p, ok := s.(Preparer); ok {
			p.Prepare(target)
		}
	}
}

// Run evaluates strategies sequentially within timeout. The timer starts when
// Run is called, so the caller decides what the budget covers. A zero timeout
// means DefaultStartupTimeout.
func Run(ctx context.Context, target Target, strategies []Strategy, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, s := range strategies {
		if err := s.WaitUntilReady(ctx, target); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				te := &TimeoutError{Strategy: s, Elapsed: time.Since(started)}
				if p, ok := s.(Progresser); ok {
					te.Progress = p.Progress()
				}
				return te
			}
			return fmt.Errorf("wait strategy %s: %w", describe(s), err)
		}
	}
	return nil
}
