package daemon

import (
	"context"
	"errors"
	"fmt"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"errdefs not found", fmt.Errorf("container: %w", cerrdefs.ErrNotFound), ErrNotFound},
		{"errdefs conflict", fmt.Errorf("name: %w", cerrdefs.ErrConflict), ErrConflict},
		{"errdefs permission", fmt.Errorf("socket: %w", cerrdefs.ErrPermissionDenied), ErrPermissionDenied},
		{"daemon down", errors.New("Cannot connect to the Docker daemon at unix:///var/run/docker.sock"), ErrTransport},
		{"connection refused", errors.New("dial tcp 127.0.0.1:2375: connect: connection refused"), ErrTransport},
		{"missing socket", errors.New("dial unix /var/run/docker.sock: connect: no such file or directory"), ErrTransport},
		{"permission message", errors.New("permission denied while trying to connect"), ErrPermissionDenied},
		{"no such container", errors.New("Error: No such container: abc"), ErrNotFound},
		{"name in use", errors.New("Conflict. The container name \"/x\" is already in use"), ErrConflict},
		{"anything else", errors.New("500 Internal Server Error"), ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("Classify(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("Classify(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify_ContextErrorsPassThrough(t *testing.T) {
	if got := Classify(context.Canceled); !errors.Is(got, context.Canceled) {
		t.Errorf("got %v", got)
	}
	if got := Classify(context.DeadlineExceeded); !errors.Is(got, context.DeadlineExceeded) {
		t.Errorf("got %v", got)
	}
	// Cancellation must not be misread as a daemon failure.
	if errors.Is(Classify(context.Canceled), ErrBadResponse) {
		t.Error("context error classified as bad response")
	}
}

func TestCheckDaemon(t *testing.T) {
	if err := CheckDaemon(context.Background(), &MockRuntime{}); err != nil {
		t.Fatalf("healthy daemon reported: %v", err)
	}

	mock := &MockRuntime{PingErr: fmt.Errorf("%w: connection refused", ErrTransport)}
	err := CheckDaemon(context.Background(), mock)
	var pre *PreflightError
	if !errors.As(err, &pre) {
		t.Fatalf("err = %v, want PreflightError", err)
	}
	if pre.Hint == "" {
		t.Error("preflight error without hint")
	}

	mock = &MockRuntime{PingErr: fmt.Errorf("%w: /var/run/docker.sock", ErrPermissionDenied)}
	err = CheckDaemon(context.Background(), mock)
	if !errors.As(err, &pre) {
		t.Fatalf("err = %v, want PreflightError", err)
	}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("cause not preserved: %v", err)
	}
}
