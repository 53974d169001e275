package drydock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExecResult holds the outcome of a command run inside a container.
type ExecResult struct {
	ExitCode int
	stdout   []byte
	stderr   []byte
}

// StdoutBytes returns the command's captured stdout.
func (r *ExecResult) StdoutBytes() []byte { return r.stdout }

// StderrBytes returns the command's captured stderr.
func (r *ExecResult) StderrBytes() []byte { return r.stderr }

// Stdout returns the captured stdout as a reader.
func (r *ExecResult) Stdout() io.Reader { return bytes.NewReader(r.stdout) }

// Stderr returns the captured stderr as a reader.
func (r *ExecResult) Stderr() io.Reader { return bytes.NewReader(r.stderr) }

// ExecWait is the readiness subset applicable to a finished exec: expected
// output on a stream, an exit code predicate, and a settle delay.
type ExecWait struct {
	// StdoutContains requires the given text on stdout.
	StdoutContains string
	// StderrContains requires the given text on stderr.
	StderrContains string
	// ExitCode, when set, requires the command to exit with a matching code.
	ExitCode func(int) bool
	// Delay is waited after the command finished, before the checks run.
	Delay time.Duration
}

type execOptions struct {
	user    string
	workdir string
	env     []string
	wait    *ExecWait
}

// ExecOption customizes a single exec invocation.
type ExecOption func(*execOptions)

// WithExecUser runs the command as the given user.
func WithExecUser(user string) ExecOption {
	return func(o *execOptions) { o.user = user }
}

// WithExecWorkingDir runs the command in the given directory.
func WithExecWorkingDir(dir string) ExecOption {
	return func(o *execOptions) { o.workdir = dir }
}

// WithExecEnv adds environment entries (KEY=value) to the command.
func WithExecEnv(env ...string) ExecOption {
	return func(o *execOptions) { o.env = append(o.env, env...) }
}

// WithExecWait applies post-exit checks to the command.
func WithExecWait(w ExecWait) ExecOption {
	return func(o *execOptions) { o.wait = &w }
}

// Exec runs argv inside the running container and collects its exit code and
// output streams. Tty stays disabled so stdout and stderr are separable.
func (c *Container) Exec(ctx context.Context, argv []string, opts ...ExecOption) (*ExecResult, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrExecNotCreated)
	}
	var options execOptions
	for _, opt := range opts {
		opt(&options)
	}

	created, err := c.runtime.ContainerExecCreate(ctx, c.id, container.ExecOptions{
		Cmd:          argv,
		User:         options.user,
		WorkingDir:   options.workdir,
		Env:          options.env,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecNotCreated, err)
	}

	attached, err := c.runtime.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{Tty: false})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecStartFailed, err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	outputDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader)
		outputDone <- err
	}()

	select {
	case err := <-outputDone:
		if err != nil {
			return nil, fmt.Errorf("%w: reading output: %w", ErrExecStartFailed, err)
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrExecTimedOut
		}
		return nil, ctx.Err()
	}

	inspect, err := c.runtime.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("inspecting exec: %w", err)
	}

	result := &ExecResult{
		ExitCode: inspect.ExitCode,
		stdout:   stdout.Bytes(),
		stderr:   stderr.Bytes(),
	}

	if options.wait != nil {
		if err := options.wait.check(ctx, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (w *ExecWait) check(ctx context.Context, result *ExecResult) error {
	if w.Delay > 0 {
		timer := time.NewTimer(w.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if w.ExitCode != nil && !w.ExitCode(result.ExitCode) {
		return fmt.Errorf("command exited with unexpected code %d", result.ExitCode)
	}
	if w.StdoutContains != "" && !bytes.Contains(result.stdout, []byte(w.StdoutContains)) {
		return fmt.Errorf("stdout does not contain %q", w.StdoutContains)
	}
	if w.StderrContains != "" && !bytes.Contains(result.stderr, []byte(w.StderrContains)) {
		return fmt.Errorf("stderr does not contain %q", w.StderrContains)
	}
	return nil
}
