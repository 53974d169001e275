package drydock

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/multierr"

	"github.com/irahardianto/drydock/archive"
	"github.com/irahardianto/drydock/internal/engine/sshtunnel"
	"github.com/irahardianto/drydock/wait"
)

// HostInternalAlias is the DNS name under which exposed host ports are
// reachable from inside the container.
const HostInternalAlias = "host.testcontainers.internal"

const (
	defaultSidecarImage = "testcontainers/sshd"
	defaultSidecarTag   = "1.2.0"
	sidecarSSHPort      = "22/tcp"
)

// hostExposure ties together the resources behind host-port exposure: the
// sshd sidecar container and the SSH session carrying the reverse tunnels.
type hostExposure struct {
	sidecar *Container
	session *sshtunnel.Session
}

// setupHostExposure starts the sshd sidecar on the request's network,
// establishes the SSH session with a one-shot key pair, and opens one
// reverse tunnel per requested host port. Any port that fails to forward
// fails the whole start.
func (r *Runner) setupHostExposure(ctx context.Context, req Request) (exposure *hostExposure, sidecarIP string, err error) {
	keys, err := sshtunnel.GenerateKeyPair()
	if err != nil {
		return nil, "", err
	}

	image, tag := defaultSidecarImage, defaultSidecarTag
	if r.cfg.Settings.Sidecar.Image != "" {
		image = r.cfg.Settings.Sidecar.Image
	}
	if r.cfg.Settings.Sidecar.Tag != "" {
		tag = r.cfg.Settings.Sidecar.Tag
	}

	sidecarReq := NewRequest(image).
		WithTag(tag).
		WithExposedPorts(sidecarSSHPort).
		WithCopy("/root/.ssh/authorized_keys", archive.Bytes{Data: keys.AuthorizedKey, Mode: 0o600}).
		WithWaitStrategy(wait.ForDuration(time.Second))
	if req.networkName != "" {
		sidecarReq = sidecarReq.WithNetwork(req.networkName)
	}

	sidecar, err := r.Run(ctx, sidecarReq)
	if err != nil {
		return nil, "", fmt.Errorf("starting sshd sidecar: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sidecar.Terminate(ctx)
		}
	}()

	sidecarIP, err = sidecarNetworkIP(ctx, sidecar, req.networkName)
	if err != nil {
		return nil, "", err
	}

	host, err := sidecar.Host(ctx)
	if err != nil {
		return nil, "", err
	}
	sshPort, err := sidecar.MappedPort(ctx, sidecarSSHPort)
	if err != nil {
		return nil, "", err
	}

	session, err := sshtunnel.Dial(ctx, net.JoinHostPort(host, sshPort.Port()), keys)
	if err != nil {
		return nil, "", err
	}
	for _, port := range req.exposedHostPorts {
		if err := session.Forward(ctx, port); err != nil {
			_ = session.Close()
			return nil, "", err
		}
	}

	return &hostExposure{sidecar: sidecar, session: session}, sidecarIP, nil
}

// sidecarNetworkIP returns the sidecar's address on the network it shares
// with the target container.
func sidecarNetworkIP(ctx context.Context, sidecar *Container, networkName string) (string, error) {
	state, err := sidecar.Inspect(ctx)
	if err != nil {
		return "", err
	}
	if state.NetworkSettings == nil {
		return "", fmt.Errorf("sidecar has no network settings")
	}

	if networkName == "" {
		networkName = "bridge"
	}
	if endpoint, ok := state.NetworkSettings.Networks[networkName]; ok && endpoint.IPAddress != "" {
		return endpoint.IPAddress, nil
	}
	for _, endpoint := range state.NetworkSettings.Networks {
		if endpoint.IPAddress != "" {
			return endpoint.IPAddress, nil
		}
	}
	return "", fmt.Errorf("sidecar has no address on network %q", networkName)
}

// close tears the exposure down in fixed order: tunnels and session first,
// then the sidecar container.
func (e *hostExposure) close(ctx context.Context) error {
	var errs error
	if e.session != nil {
		errs = multierr.Append(errs, e.session.Close())
	}
	if e.sidecar != nil {
		errs = multierr.Append(errs, e.sidecar.Terminate(ctx))
	}
	return errs
}
