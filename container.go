package drydock

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	"go.uber.org/multierr"

	"github.com/irahardianto/drydock/archive"
	"github.com/irahardianto/drydock/internal/engine/config"
	"github.com/irahardianto/drydock/internal/engine/daemon"
	"github.com/irahardianto/drydock/internal/engine/reaper"
	"github.com/irahardianto/drydock/internal/platform/logger"
	"github.com/irahardianto/drydock/logs"
)

// Container is the handle to a running harness container. Terminating the
// handle removes the container and every auxiliary resource the harness
// created for it: the tunnel sidecar and, if the handle created it, the
// user-defined network.
type Container struct {
	id      string
	runtime daemon.Runtime
	cfg     *config.Config
	req     Request

	ownedNetworkID string
	exposure       *hostExposure
	pump           *logs.Pump
	reused         bool

	mu      sync.Mutex
	cached  *container.InspectResponse
	dropped atomic.Bool
}

// ID returns the daemon-assigned container id.
func (c *Container) ID() string {
	return c.id
}

// Request returns the request this container was started from.
func (c *Container) Request() Request {
	return c.req
}

// Host returns the hostname mapped container ports are reachable on from
// the test process.
func (c *Container) Host(_ context.Context) (string, error) {
	return daemonHostname(c.cfg.Host), nil
}

func daemonHostname(endpoint string) string {
	if strings.HasPrefix(endpoint, "unix://") || strings.HasPrefix(endpoint, "npipe://") || endpoint == "" {
		return "localhost"
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}

// Inspect fetches the current daemon-side state and refreshes the cache.
func (c *Container) Inspect(ctx context.Context) (container.InspectResponse, error) {
	state, err := c.runtime.ContainerInspect(ctx, c.id)
	if err != nil {
		return state, err
	}
	c.mu.Lock()
	c.cached = &state
	c.mu.Unlock()
	return state, nil
}

// inspectCached returns the cached inspect response, fetching once when the
// cache is cold.
func (c *Container) inspectCached(ctx context.Context) (container.InspectResponse, error) {
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}
	return c.Inspect(ctx)
}

// MappedPort resolves the host port the daemon published for the given
// container port, preferring the IPv4 binding.
func (c *Container) MappedPort(ctx context.Context, port nat.Port) (nat.Port, error) {
	if mapped, err := c.MappedPortIPv4(ctx, port); err == nil {
		return mapped, nil
	}
	return c.mappedPort(ctx, port, func(string) bool { return true })
}

// MappedPortIPv4 resolves the host port bound on an IPv4 interface.
func (c *Container) MappedPortIPv4(ctx context.Context, port nat.Port) (nat.Port, error) {
	return c.mappedPort(ctx, port, func(hostIP string) bool {
		if hostIP == "" || hostIP == "0.0.0.0" {
			return true
		}
		ip := net.ParseIP(hostIP)
		return ip != nil && ip.To4() != nil
	})
}

// MappedPortIPv6 resolves the host port bound on an IPv6 interface.
func (c *Container) MappedPortIPv6(ctx context.Context, port nat.Port) (nat.Port, error) {
	return c.mappedPort(ctx, port, func(hostIP string) bool {
		if hostIP == "::" {
			return true
		}
		ip := net.ParseIP(hostIP)
		return ip != nil && ip.To4() == nil
	})
}

func (c *Container) mappedPort(ctx context.Context, port nat.Port, match func(hostIP string) bool) (nat.Port, error) {
	lookup := func(state container.InspectResponse) (nat.Port, bool) {
		if state.NetworkSettings == nil {
			return "", false
		}
		for _, binding := range state.NetworkSettings.Ports[port] {
			if binding.HostPort != "" && match(binding.HostIP) {
				return nat.Port(binding.HostPort + "/" + port.Proto()), true
			}
		}
		return "", false
	}

	state, err := c.inspectCached(ctx)
	if err != nil {
		return "", err
	}
	if mapped, ok := lookup(state); ok {
		return mapped, nil
	}

	// The daemon assigns host ports asynchronously right after start;
	// refresh once before giving up.
	state, err = c.Inspect(ctx)
	if err != nil {
		return "", err
	}
	if mapped, ok := lookup(state); ok {
		return mapped, nil
	}
	return "", &PortNotExposedError{Port: port}
}

// Stop stops the container, giving the process the daemon's default grace
// period.
func (c *Container) Stop(ctx context.Context) error {
	return c.runtime.ContainerStop(ctx, c.id, container.StopOptions{})
}

// Start starts a previously stopped container.
func (c *Container) Start(ctx context.Context) error {
	return c.runtime.ContainerStart(ctx, c.id, container.StartOptions{})
}

// Kill sends SIGKILL to the container's main process.
func (c *Container) Kill(ctx context.Context) error {
	return c.runtime.ContainerKill(ctx, c.id, "SIGKILL")
}

// WaitForExit blocks until the container stops running and returns its exit
// code.
func (c *Container) WaitForExit(ctx context.Context) (int64, error) {
	respCh, errCh := c.runtime.ContainerWait(ctx, c.id, container.WaitConditionNotRunning)
	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return 0, fmt.Errorf("waiting for container exit: %s", resp.Error.Message)
		}
		return resp.StatusCode, nil
	case err := <-errCh:
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ConnectNetwork attaches the running container to an additional network.
func (c *Container) ConnectNetwork(ctx context.Context, networkID string, aliases ...string) error {
	return c.runtime.NetworkConnect(ctx, networkID, c.id, &network.EndpointSettings{Aliases: aliases})
}

// Pause suspends all processes in the container.
func (c *Container) Pause(ctx context.Context) error {
	return c.runtime.ContainerPause(ctx, c.id)
}

// Unpause resumes a paused container.
func (c *Container) Unpause(ctx context.Context) error {
	return c.runtime.ContainerUnpause(ctx, c.id)
}

// CopyToContainer uploads src to target inside the container.
func (c *Container) CopyToContainer(ctx context.Context, target string, src archive.Source) error {
	buf, err := archive.Tar(target, src)
	if err != nil {
		return err
	}
	return c.runtime.CopyToContainer(ctx, c.id, "/", buf, container.CopyToContainerOptions{})
}

// CopyFileFromContainer downloads the single file at path into sink.
func (c *Container) CopyFileFromContainer(ctx context.Context, path string, sink archive.Sink) error {
	rc, stat, err := c.runtime.CopyFromContainer(ctx, c.id, path)
	if err != nil {
		return err
	}
	defer rc.Close()

	if stat.Mode.IsDir() {
		return archive.ErrUnexpectedDirectory
	}
	return archive.ExtractSingleFile(rc, sink)
}

// Logs returns the container's multiplexed log stream. With follow the
// stream stays live; without it the stream ends at the current log tail.
// Demultiplex with the logs package.
func (c *Container) Logs(ctx context.Context, follow bool) (io.ReadCloser, error) {
	return c.runtime.ContainerLogs(ctx, c.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
	})
}

// StdoutBytes returns the container's stdout so far as one buffer.
func (c *Container) StdoutBytes(ctx context.Context) ([]byte, error) {
	stdout, _, err := c.logsBuffers(ctx)
	return stdout, err
}

// StderrBytes returns the container's stderr so far as one buffer.
func (c *Container) StderrBytes(ctx context.Context) ([]byte, error) {
	_, stderr, err := c.logsBuffers(ctx)
	return stderr, err
}

func (c *Container) logsBuffers(ctx context.Context) ([]byte, []byte, error) {
	rc, err := c.Logs(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	stdout, stderr, err := logs.Demux(rc)
	if err != nil {
		return nil, nil, err
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// Terminate tears the handle down: tunnels, SSH session, sidecar, the
// container itself, and the network the handle created. Teardown is
// idempotent and best-effort; every step runs regardless of earlier
// failures, errors are logged and returned aggregated.
func (c *Container) Terminate(ctx context.Context) error {
	if !c.dropped.CompareAndSwap(false, true) {
		return nil
	}
	log := logger.FromContext(ctx)

	var errs error
	if c.exposure != nil {
		errs = multierr.Append(errs, c.exposure.close(ctx))
	}
	if c.pump != nil {
		_ = c.pump.Close()
	}

	keep := c.cfg.Command == config.CommandKeep || c.reused
	if !keep && c.id != "" {
		errs = multierr.Append(errs, c.runtime.ContainerRemove(ctx, c.id, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		}))
	}
	if !keep && c.ownedNetworkID != "" {
		errs = multierr.Append(errs, c.runtime.NetworkRemove(ctx, c.ownedNetworkID))
	}
	reaper.Deregister(c.id)

	if errs != nil {
		log.Warn("container teardown finished with errors", "container_id", c.id, "error", errs)
	}
	return errs
}
