package drydock

import (
	"errors"
	"fmt"

	"github.com/docker/go-connections/nat"

	"github.com/irahardianto/drydock/internal/engine/daemon"
)

// Stage names the lifecycle step a start failure happened in.
type Stage string

const (
	StagePull    Stage = "pull"
	StageNetwork Stage = "network"
	StageSidecar Stage = "sidecar"
	StageCreate  Stage = "create"
	StageCopy    Stage = "copy-in"
	StageStart   Stage = "start"
	StageWait    Stage = "wait"
)

// Daemon error kinds, re-exported so callers can match without importing
// internal packages.
var (
	// ErrDaemonUnavailable indicates the daemon transport failed.
	ErrDaemonUnavailable = daemon.ErrTransport
	// ErrNotFound indicates the daemon does not know the resource.
	ErrNotFound = daemon.ErrNotFound
	// ErrConflict indicates a daemon-side name or state collision.
	ErrConflict = daemon.ErrConflict
)

// Exec failure kinds.
var (
	ErrExecNotCreated  = errors.New("exec instance could not be created")
	ErrExecStartFailed = errors.New("exec could not be started")
	ErrExecTimedOut    = errors.New("exec timed out")
)

// StartError is the terminal error of a failed container start. It carries
// the stage that failed; everything allocated before that stage has been
// torn down best-effort by the time the caller sees it.
type StartError struct {
	Stage Stage
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("container start failed during %s: %v", e.Stage, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// InvalidRequestError is returned at build time, before any I/O happens.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid container request: " + e.Reason
}

// PortNotExposedError is returned when a host-port query names a container
// port the daemon did not publish.
type PortNotExposedError struct {
	Port nat.Port
}

func (e *PortNotExposedError) Error() string {
	return fmt.Sprintf("port %s is not exposed", string(e.Port))
}
