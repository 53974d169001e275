// Package daemon wraps the Docker Engine API behind a typed runtime interface.
//
// Production code uses DockerRuntime; tests use MockRuntime. Every error that
// crosses this package boundary is classified into the uniform taxonomy in
// errors.go, independent of the daemon's wire format.
package daemon

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// Runtime abstracts the daemon operations the harness relies on.
type Runtime interface {
	// Ping checks if the daemon is available and responsive.
	Ping(ctx context.Context) error

	// ImagePull requests the daemon to pull an image from a remote registry.
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)

	// ImageInspect returns image metadata, or a not-found error when the
	// image is absent locally.
	ImageInspect(ctx context.Context, ref string) (image.InspectResponse, error)

	// ContainerCreate creates a new container based on the given configuration.
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *v1.Platform, name string) (container.CreateResponse, error)

	// ContainerStart starts a container.
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error

	// ContainerStop stops a container, sending SIGKILL after the timeout.
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error

	// ContainerKill sends a signal to a running container.
	ContainerKill(ctx context.Context, containerID, signal string) error

	// ContainerPause suspends all processes in a container.
	ContainerPause(ctx context.Context, containerID string) error

	// ContainerUnpause resumes all processes in a paused container.
	ContainerUnpause(ctx context.Context, containerID string) error

	// ContainerInspect returns the container information.
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)

	// ContainerList returns the list of containers in the daemon.
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)

	// ContainerRemove kills and removes a container from the daemon.
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error

	// ContainerWait blocks until the container reaches the given condition.
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)

	// ContainerLogs returns the multiplexed log stream of a container.
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)

	// CopyToContainer uploads a tar archive into the container filesystem.
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error

	// CopyFromContainer downloads a path from the container filesystem as a
	// tar archive.
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error)

	// ContainerExecCreate creates a new exec configuration to run an exec process.
	ContainerExecCreate(ctx context.Context, containerID string, config container.ExecOptions) (container.ExecCreateResponse, error)

	// ContainerExecAttach attaches a connection to an exec process.
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)

	// ContainerExecInspect returns information about a specific exec process.
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)

	// NetworkCreate creates a new user-defined network.
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)

	// NetworkInspect returns network metadata.
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)

	// NetworkConnect connects a container to a network.
	NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error

	// NetworkRemove removes a user-defined network.
	NetworkRemove(ctx context.Context, networkID string) error

	// NetworkList returns the networks known to the daemon.
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
}
