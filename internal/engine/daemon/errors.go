package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
)

// Sentinel error kinds for daemon failures. Callers match with errors.Is,
// independent of the daemon's wire format.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTransport        = errors.New("daemon unreachable")
	ErrBadResponse      = errors.New("bad daemon response")
)

// Classify maps an error returned by the Docker SDK onto the uniform kinds.
// A nil error stays nil; context errors pass through untouched so callers can
// still detect cancellation.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case cerrdefs.IsNotFound(err):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case cerrdefs.IsConflict(err):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case cerrdefs.IsPermissionDenied(err):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	// The SDK wraps transport failures in plain errors; fall back to
	// message sniffing.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "cannot connect to the docker daemon"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "no such file or directory"):
		return fmt.Errorf("%w: %w", ErrTransport, err)
	case strings.Contains(msg, "no such container"),
		strings.Contains(msg, "no such image"),
		strings.Contains(msg, "no such network"):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case strings.Contains(msg, "already in use"),
		strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	return fmt.Errorf("%w: %w", ErrBadResponse, err)
}
