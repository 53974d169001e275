package daemon

import (
	"context"
	"errors"
	"fmt"
)

// PreflightError wraps a daemon connectivity error with a user-friendly message.
type PreflightError struct {
	Hint  string
	Cause error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("❌ %s", e.Hint)
}

func (e *PreflightError) Unwrap() error {
	return e.Cause
}

// CheckDaemon verifies the container daemon is available before any
// container is started. Returns a PreflightError with context-specific hints
// on failure.
func CheckDaemon(ctx context.Context, runtime Runtime) error {
	err := runtime.Ping(ctx)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &PreflightError{
			Hint:  "Docker permission denied. Run: sudo usermod -aG docker $USER, then re-login.",
			Cause: err,
		}
	case errors.Is(err, ErrTransport):
		return &PreflightError{
			Hint:  "Docker daemon is not reachable. Start it, or point DOCKER_HOST / tc.host at a running daemon.",
			Cause: err,
		}
	default:
		return &PreflightError{
			Hint:  "Docker is required but not responding. Install it from https://docker.com",
			Cause: err,
		}
	}
}
