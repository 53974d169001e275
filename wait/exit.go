package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ExitStrategy waits for the container to terminate with a matching exit
// code. This is the one strategy where a stopped container is the intended
// outcome rather than a failure.
type ExitStrategy struct {
	match        func(int) bool
	pollInterval time.Duration
	lastState    string
}

// ForExit waits for the container to exit, with any code.
func ForExit() *ExitStrategy {
	return &ExitStrategy{
		match:        func(int) bool { return true },
		pollInterval: DefaultPollInterval,
	}
}

// ForExitCode waits for the container to exit with exactly code.
func ForExitCode(code int) *ExitStrategy {
	s := ForExit()
	s.match = func(actual int) bool { return actual == code }
	return s
}

// WithExitCodeMatcher replaces the exit code predicate.
func (s *ExitStrategy) WithExitCodeMatcher(match func(int) bool) *ExitStrategy {
	if match != nil {
		s.match = match
	}
	return s
}

func (s *ExitStrategy) String() string { return "exit" }

// Progress reports the last observed container state.
func (s *ExitStrategy) Progress() string {
	if s.lastState == "" {
		return "no state observed"
	}
	return "last state " + s.lastState
}

// WaitUntilReady polls until the container reports exited.
func (s *ExitStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	return retry.Do(ctx, retry.NewConstant(s.pollInterval), func(ctx context.Context) error {
		state, err := target.Inspect(ctx)
		if err != nil {
			return err
		}
		if state.State == nil {
			return retry.RetryableError(fmt.Errorf("no state reported"))
		}
		s.lastState = state.State.Status
		if state.State.Status != "exited" {
			return retry.RetryableError(fmt.Errorf("container state is %s", state.State.Status))
		}
		if !s.match(state.State.ExitCode) {
			return fmt.Errorf("container exited with unexpected code %d", state.State.ExitCode)
		}
		return nil
	})
}
