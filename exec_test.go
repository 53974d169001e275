package drydock

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/irahardianto/drydock/internal/engine/daemon"
)

// execStream builds a multiplexed exec output stream.
func execStream(t *testing.T, stdout, stderr string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if stdout != "" {
		if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout)); err != nil {
			t.Fatal(err)
		}
	}
	if stderr != "" {
		if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr)); err != nil {
			t.Fatal(err)
		}
	}
	return &buf
}

func execMock(t *testing.T, stdout, stderr string, exitCode int) *daemon.MockRuntime {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	return &daemon.MockRuntime{
		ExecCreateResp: container.ExecCreateResponse{ID: "exec-1"},
		ExecAttachResp: types.HijackedResponse{
			Conn:   client,
			Reader: bufio.NewReader(execStream(t, stdout, stderr)),
		},
		ExecInspectResp: container.ExecInspect{ExitCode: exitCode},
	}
}

func TestExec(t *testing.T) {
	mock := execMock(t, "PONG\n", "", 0)
	c := testContainer(mock)

	result, err := c.Exec(context.Background(), []string{"redis-cli", "PING"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if !bytes.Contains(result.StdoutBytes(), []byte("PONG")) {
		t.Errorf("stdout = %q, want PONG", result.StdoutBytes())
	}

	created := mock.ExecCreated[0]
	if len(created.Cmd) != 2 || created.Cmd[0] != "redis-cli" {
		t.Errorf("Cmd = %v", created.Cmd)
	}
	if created.Tty {
		t.Error("tty must stay disabled so streams are separable")
	}
}

func TestExec_SeparatesStreams(t *testing.T) {
	mock := execMock(t, "to out", "to err", 1)
	c := testContainer(mock)

	result, err := c.Exec(context.Background(), []string{"sh", "-c", "boom"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.StdoutBytes()) != "to out" {
		t.Errorf("stdout = %q", result.StdoutBytes())
	}
	if string(result.StderrBytes()) != "to err" {
		t.Errorf("stderr = %q", result.StderrBytes())
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestExec_EmptyCommand(t *testing.T) {
	c := testContainer(&daemon.MockRuntime{})

	_, err := c.Exec(context.Background(), nil)
	if !errors.Is(err, ErrExecNotCreated) {
		t.Errorf("err = %v, want ErrExecNotCreated", err)
	}
}

func TestExec_CreateFailure(t *testing.T) {
	mock := &daemon.MockRuntime{
		ExecCreateErr: errors.New("container not running"),
	}
	c := testContainer(mock)

	_, err := c.Exec(context.Background(), []string{"true"})
	if !errors.Is(err, ErrExecNotCreated) {
		t.Errorf("err = %v, want ErrExecNotCreated", err)
	}
}

func TestExec_AttachFailure(t *testing.T) {
	mock := &daemon.MockRuntime{
		ExecCreateResp: container.ExecCreateResponse{ID: "exec-1"},
		ExecAttachErr:  errors.New("hijack failed"),
	}
	c := testContainer(mock)

	_, err := c.Exec(context.Background(), []string{"true"})
	if !errors.Is(err, ErrExecStartFailed) {
		t.Errorf("err = %v, want ErrExecStartFailed", err)
	}
}

func TestExec_Timeout(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	mock := &daemon.MockRuntime{
		ExecCreateResp: container.ExecCreateResponse{ID: "exec-1"},
		ExecAttachResp: types.HijackedResponse{
			Conn: client,
			// Reading from the pipe blocks forever, like a hung command.
			Reader: bufio.NewReader(client),
		},
	}
	c := testContainer(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Exec(ctx, []string{"sleep", "600"})
	if !errors.Is(err, ErrExecTimedOut) {
		t.Errorf("err = %v, want ErrExecTimedOut", err)
	}
}

func TestExec_WaitChecks(t *testing.T) {
	mock := execMock(t, "ready\n", "", 0)
	c := testContainer(mock)

	zero := func(code int) bool { return code == 0 }
	_, err := c.Exec(context.Background(), []string{"check"}, WithExecWait(ExecWait{
		StdoutContains: "ready",
		ExitCode:       zero,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock = execMock(t, "nope\n", "", 0)
	c = testContainer(mock)
	_, err = c.Exec(context.Background(), []string{"check"}, WithExecWait(ExecWait{
		StdoutContains: "ready",
	}))
	if err == nil {
		t.Fatal("expected error when expected output is missing")
	}
}

func TestExec_Options(t *testing.T) {
	mock := execMock(t, "", "", 0)
	c := testContainer(mock)

	_, err := c.Exec(context.Background(), []string{"id"},
		WithExecUser("1000:1000"),
		WithExecWorkingDir("/srv"),
		WithExecEnv("FOO=bar"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created := mock.ExecCreated[0]
	if created.User != "1000:1000" {
		t.Errorf("User = %q", created.User)
	}
	if created.WorkingDir != "/srv" {
		t.Errorf("WorkingDir = %q", created.WorkingDir)
	}
	if len(created.Env) != 1 || created.Env[0] != "FOO=bar" {
		t.Errorf("Env = %v", created.Env)
	}
}
