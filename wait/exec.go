package wait

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// ExecStrategy waits until a command inside the container exits with 0.
type ExecStrategy struct {
	cmd          []string
	pollInterval time.Duration
	lastExitCode int
	ran          bool
}

// ForExec waits for the given command to succeed inside the container.
func ForExec(cmd []string) *ExecStrategy {
	return &ExecStrategy{cmd: cmd, pollInterval: DefaultPollInterval}
}

// WithPollInterval overrides the poll interval, floored at 100ms.
func (s *ExecStrategy) WithPollInterval(d time.Duration) *ExecStrategy {
	if d >= DefaultPollInterval {
		s.pollInterval = d
	}
	return s
}

func (s *ExecStrategy) String() string {
	return fmt.Sprintf("exec(%s)", strings.Join(s.cmd, " "))
}

// Progress reports the last observed exit code.
func (s *ExecStrategy) Progress() string {
	if !s.ran {
		return "command not run yet"
	}
	return fmt.Sprintf("last exit code %d", s.lastExitCode)
}

// WaitUntilReady repeatedly execs the command until it exits 0.
func (s *ExecStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	if len(s.cmd) == 0 {
		return fmt.Errorf("exec strategy requires a command")
	}
	return retry.Do(ctx, retry.NewConstant(s.pollInterval), func(ctx context.Context) error {
		code, err := target.Exec(ctx, s.cmd)
		if err != nil {
			return retry.RetryableError(err)
		}
		s.ran = true
		s.lastExitCode = code
		if code != 0 {
			return retry.RetryableError(fmt.Errorf("command exited with %d", code))
		}
		return nil
	})
}
