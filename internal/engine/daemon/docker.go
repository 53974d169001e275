package daemon

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// DockerRuntime implements Runtime using the Docker SDK.
type DockerRuntime struct {
	client client.APIClient
}

// NewDockerRuntimeFrom creates a DockerRuntime with the given API client.
// Use this constructor when you need to inject a specific client (e.g., for testing).
func NewDockerRuntimeFrom(cli client.APIClient) *DockerRuntime {
	return &DockerRuntime{client: cli}
}

// NewDockerRuntime creates a DockerRuntime connected to the given daemon host.
// An empty host falls back to the environment (DOCKER_HOST) and the platform
// default socket, with API version negotiation.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, Classify(err)
	}
	return NewDockerRuntimeFrom(cli), nil
}

// Close releases the underlying HTTP connection pool.
func (d *DockerRuntime) Close() error {
	return d.client.Close()
}

// Ping checks if the daemon is available and responsive.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	_, err := d.client.Ping(ctx)
	return Classify(err)
}

// ImagePull requests the daemon to pull an image from a remote registry.
func (d *DockerRuntime) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	rc, err := d.client.ImagePull(ctx, ref, options)
	return rc, Classify(err)
}

// ImageInspect returns image metadata.
func (d *DockerRuntime) ImageInspect(ctx context.Context, ref string) (image.InspectResponse, error) {
	resp, err := d.client.ImageInspect(ctx, ref)
	return resp, Classify(err)
}

// ContainerCreate creates a new container based on the given configuration.
func (d *DockerRuntime) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *v1.Platform, name string) (container.CreateResponse, error) {
	resp, err := d.client.ContainerCreate(ctx, config, hostConfig, networkingConfig, platform, name)
	return resp, Classify(err)
}

// ContainerStart sends a request to the daemon to start a container.
func (d *DockerRuntime) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return Classify(d.client.ContainerStart(ctx, containerID, options))
}

// ContainerStop stops a container.
func (d *DockerRuntime) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	return Classify(d.client.ContainerStop(ctx, containerID, options))
}

// ContainerKill sends a signal to a running container.
func (d *DockerRuntime) ContainerKill(ctx context.Context, containerID, signal string) error {
	return Classify(d.client.ContainerKill(ctx, containerID, signal))
}

// ContainerPause suspends all processes in a container.
func (d *DockerRuntime) ContainerPause(ctx context.Context, containerID string) error {
	return Classify(d.client.ContainerPause(ctx, containerID))
}

// ContainerUnpause resumes all processes in a paused container.
func (d *DockerRuntime) ContainerUnpause(ctx context.Context, containerID string) error {
	return Classify(d.client.ContainerUnpause(ctx, containerID))
}

// ContainerInspect returns low-level information about a container.
func (d *DockerRuntime) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	resp, err := d.client.ContainerInspect(ctx, containerID)
	return resp, Classify(err)
}

// ContainerList returns the list of containers in the daemon.
func (d *DockerRuntime) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	list, err := d.client.ContainerList(ctx, options)
	return list, Classify(err)
}

// ContainerRemove kills and removes a container from the daemon.
func (d *DockerRuntime) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	return Classify(d.client.ContainerRemove(ctx, containerID, options))
}

// ContainerWait blocks until the container reaches the given condition.
func (d *DockerRuntime) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	return d.client.ContainerWait(ctx, containerID, condition)
}

// ContainerLogs returns the multiplexed log stream of a container.
func (d *DockerRuntime) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	rc, err := d.client.ContainerLogs(ctx, containerID, options)
	return rc, Classify(err)
}

// CopyToContainer uploads a tar archive into the container filesystem.
func (d *DockerRuntime) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error {
	return Classify(d.client.CopyToContainer(ctx, containerID, dstPath, content, options))
}

// CopyFromContainer downloads a path from the container filesystem as a tar archive.
func (d *DockerRuntime) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error) {
	rc, stat, err := d.client.CopyFromContainer(ctx, containerID, srcPath)
	return rc, stat, Classify(err)
}

// ContainerExecCreate sets up an exec instance in a container.
func (d *DockerRuntime) ContainerExecCreate(ctx context.Context, containerID string, config container.ExecOptions) (container.ExecCreateResponse, error) {
	resp, err := d.client.ContainerExecCreate(ctx, containerID, config)
	return resp, Classify(err)
}

// ContainerExecAttach attaches a connection to an exec process in a container.
func (d *DockerRuntime) ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error) {
	resp, err := d.client.ContainerExecAttach(ctx, execID, config)
	return resp, Classify(err)
}

// ContainerExecInspect returns information about a specific exec process.
func (d *DockerRuntime) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	resp, err := d.client.ContainerExecInspect(ctx, execID)
	return resp, Classify(err)
}

// NetworkCreate creates a new user-defined network.
func (d *DockerRuntime) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	resp, err := d.client.NetworkCreate(ctx, name, options)
	return resp, Classify(err)
}

// NetworkInspect returns network metadata.
func (d *DockerRuntime) NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error) {
	resp, err := d.client.NetworkInspect(ctx, networkID, options)
	return resp, Classify(err)
}

// NetworkConnect connects a container to a network.
func (d *DockerRuntime) NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error {
	return Classify(d.client.NetworkConnect(ctx, networkID, containerID, config))
}

// NetworkRemove removes a user-defined network.
func (d *DockerRuntime) NetworkRemove(ctx context.Context, networkID string) error {
	return Classify(d.client.NetworkRemove(ctx, networkID))
}

// NetworkList returns the networks known to the daemon.
func (d *DockerRuntime) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	list, err := d.client.NetworkList(ctx, options)
	return list, Classify(err)
}
