package drydock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/irahardianto/drydock/internal/engine/config"
	"github.com/irahardianto/drydock/internal/engine/daemon"
	"github.com/irahardianto/drydock/internal/engine/reaper"
	"github.com/irahardianto/drydock/internal/platform/logger"
	"github.com/irahardianto/drydock/logs"
	"github.com/irahardianto/drydock/wait"
)

// Runner starts containers from requests. One Runner can serve any number
// of parallel starts; handles are independent of each other.
type Runner struct {
	runtime daemon.Runtime
	cfg     *config.Config
}

// NewRunner resolves the harness configuration, connects to the daemon and
// verifies it responds.
func NewRunner(ctx context.Context) (*Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	rt, err := daemon.NewDockerRuntime(cfg.Host)
	if err != nil {
		return nil, err
	}
	if err := daemon.CheckDaemon(ctx, rt); err != nil {
		return nil, err
	}
	if cfg.Settings.WatchdogDisabled {
		reaper.Disable()
	}
	return &Runner{runtime: rt, cfg: cfg}, nil
}

// NewRunnerFrom creates a Runner with an injected runtime. Used by tests and
// by callers that manage their own daemon client.
func NewRunnerFrom(rt daemon.Runtime, cfg *config.Config) *Runner {
	if cfg == nil {
		cfg = &config.Config{Command: config.CommandRemove}
	}
	return &Runner{runtime: rt, cfg: cfg}
}

var (
	defaultRunner     *Runner
	defaultRunnerErr  error
	defaultRunnerOnce sync.Once
)

// Run starts a container with the process-wide default runner.
func Run(ctx context.Context, req Request) (*Container, error) {
	defaultRunnerOnce.Do(func() {
		defaultRunner, defaultRunnerErr = NewRunner(ctx)
	})
	if defaultRunnerErr != nil {
		return nil, defaultRunnerErr
	}
	return defaultRunner.Run(ctx, req)
}

// Run consumes the request and walks it through the start sequence:
// pull, network setup, sidecar setup, create, copy-in, start, readiness.
// On any step's failure everything already allocated is torn down
// best-effort and the returned error names the failed stage.
//
// The startup timeout bounds only the readiness phase; pull time is
// excluded.
func (r *Runner) Run(ctx context.Context, req Request) (*Container, error) {
	log := logger.FromContext(ctx)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.reuseKey != "" {
		if c, ok := r.adoptReusable(ctx, req); ok {
			log.Info("adopted reusable container", "container_id", c.id)
			return c, nil
		}
	}

	if err := r.ensureImage(ctx, req); err != nil {
		return nil, &StartError{Stage: StagePull, Err: fmt.Errorf("image %s: %w", req.Ref(), err)}
	}

	c := &Container{runtime: r.runtime, cfg: r.cfg, req: req}

	// Teardown must run even when the caller's context is already dead.
	fail := func(stage Stage, err error) (*Container, error) {
		cleanupCtx := logger.WithContext(context.WithoutCancel(ctx), log)
		if terr := c.Terminate(cleanupCtx); terr != nil {
			log.Warn("teardown after failed start reported errors", "stage", stage, "error", terr)
		}
		return nil, &StartError{Stage: stage, Err: err}
	}

	networkID, owned, err := r.ensureNetwork(ctx, req)
	if err != nil {
		return fail(StageNetwork, err)
	}
	if owned {
		c.ownedNetworkID = networkID
	}

	extraHosts := make([]string, 0, len(req.hosts)+1)
	for _, h := range req.hosts {
		extraHosts = append(extraHosts, h.host+":"+h.ip)
	}

	if len(req.exposedHostPorts) > 0 {
		exposure, sidecarIP, err := r.setupHostExposure(ctx, req)
		if err != nil {
			return fail(StageSidecar, err)
		}
		c.exposure = exposure
		extraHosts = append(extraHosts, HostInternalAlias+":"+sidecarIP)
	}

	created, err := r.createContainer(ctx, req, extraHosts)
	if err != nil {
		return fail(StageCreate, err)
	}
	c.id = created.ID
	reaper.Register(r.runtime, reaper.Resource{ContainerID: c.id, NetworkID: c.ownedNetworkID})
	log.Debug("container created", "container_id", c.id, "image", req.Ref())

	for _, entry := range req.copies {
		if err := c.CopyToContainer(ctx, entry.target, entry.source); err != nil {
			return fail(StageCopy, fmt.Errorf("target %s: %w", entry.target, err))
		}
	}

	if err := r.runtime.ContainerStart(ctx, c.id, container.StartOptions{}); err != nil {
		return fail(StageStart, err)
	}
	log.Info("container started", "container_id", c.id, "image", req.Ref())

	// The readiness timer starts only now: pull and create time never eat
	// into the startup budget.
	target := waitTarget{c: c}
	if len(req.consumers) > 0 || hasPreparer(req.strategies) {
		// The pump outlives this call; user consumers stream for the
		// container's whole life, so neither the log stream nor the pump is
		// tied to the caller's cancellation.
		pumpCtx := logger.WithContext(context.WithoutCancel(ctx), log)
		stream, err := c.Logs(pumpCtx, true)
		if err != nil {
			return fail(StageWait, err)
		}
		c.pump = logs.NewPump(stream)
		for _, consumer := range req.consumers {
			c.pump.Subscribe(consumer)
		}
		wait.Prepare(target, req.strategies)
		c.pump.Start(pumpCtx)
	}

	if err := wait.Run(ctx, target, req.strategies, r.startupTimeout(req)); err != nil {
		return fail(StageWait, err)
	}

	log.Debug("container ready", "container_id", c.id)
	return c, nil
}

func (r *Runner) startupTimeout(req Request) time.Duration {
	if req.startupTimeout > 0 {
		return req.startupTimeout
	}
	if r.cfg.Settings.StartupTimeout > 0 {
		return time.Duration(r.cfg.Settings.StartupTimeout)
	}
	return wait.DefaultStartupTimeout
}

// adoptReusable looks for a running container created by an earlier run with
// the same reuse identity.
func (r *Runner) adoptReusable(ctx context.Context, req Request) (*Container, bool) {
	list, err := r.runtime.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", reaper.ReuseHashLabel+"="+req.reuseHash()),
			filters.Arg("status", "running"),
		),
		Limit: 1,
	})
	if err != nil || len(list) == 0 {
		return nil, false
	}
	return &Container{
		id:      list[0].ID,
		runtime: r.runtime,
		cfg:     r.cfg,
		req:     req,
		reused:  true,
	}, true
}

// ensureImage pulls the image unless it is present locally and the policy is
// if-missing. Registry credentials are resolved from the environment.
func (r *Runner) ensureImage(ctx context.Context, req Request) error {
	ref := req.Ref()
	log := logger.FromContext(ctx)

	policy := req.pull
	if r.cfg.Settings.PullPolicy == "always" {
		policy = PullAlways
	}
	if policy == PullIfMissing {
		if _, err := r.runtime.ImageInspect(ctx, ref); err == nil {
			return nil
		}
	}

	auth, err := daemon.ResolveAuth(ref)
	if err != nil {
		log.Warn("registry auth resolution failed, pulling anonymously", "image", ref, "error", err)
		auth = ""
	}

	log.Debug("pulling image", "image", ref)
	reader, err := r.runtime.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: auth})
	if err != nil {
		return err
	}
	if reader == nil {
		return nil
	}
	// The daemon reports pull progress and failures in the stream; draining
	// it is what makes the pull outcome observable.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		_ = reader.Close()
		return fmt.Errorf("reading image pull response: %w", err)
	}
	return reader.Close()
}

// ensureNetwork resolves or creates the request's user-defined network.
// Returns the network id and whether this start owns it.
func (r *Runner) ensureNetwork(ctx context.Context, req Request) (string, bool, error) {
	if req.networkName == "" || req.networkMode != "" {
		return "", false, nil
	}

	inspected, err := r.runtime.NetworkInspect(ctx, req.networkName, network.InspectOptions{})
	if err == nil {
		return inspected.ID, false, nil
	}
	if !errors.Is(err, daemon.ErrNotFound) {
		return "", false, err
	}

	created, err := r.runtime.NetworkCreate(ctx, req.networkName, network.CreateOptions{
		Labels: map[string]string{reaper.SessionLabel: reaper.SessionID()},
	})
	if err != nil {
		// Parallel starts race on creating the same network; losing the
		// race means the network exists now.
		if errors.Is(err, daemon.ErrConflict) {
			if inspected, ierr := r.runtime.NetworkInspect(ctx, req.networkName, network.InspectOptions{}); ierr == nil {
				return inspected.ID, false, nil
			}
		}
		return "", false, err
	}
	logger.FromContext(ctx).Debug("network created", "network", req.networkName, "network_id", created.ID)
	return created.ID, true, nil
}

func (r *Runner) createContainer(ctx context.Context, req Request, extraHosts []string) (container.CreateResponse, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range req.exposedPorts {
		exposed[p] = struct{}{}
		bindings[p] = append(bindings[p], nat.PortBinding{HostIP: "0.0.0.0", HostPort: "0"})
	}
	for _, m := range req.mappedPorts {
		exposed[m.ContainerPort] = struct{}{}
		bindings[m.ContainerPort] = append(bindings[m.ContainerPort], nat.PortBinding{
			HostIP:   "0.0.0.0",
			HostPort: fmt.Sprintf("%d", m.HostPort),
		})
	}

	env := make([]string, 0, len(req.env))
	for k, v := range req.env {
		env = append(env, k+"="+v)
	}

	labels := map[string]string{
		reaper.SessionLabel:  reaper.SessionID(),
		reaper.ReusableLabel: "false",
	}
	if req.reuseKey != "" {
		labels[reaper.ReusableLabel] = "true"
		labels[reaper.ReuseHashLabel] = req.reuseHash()
	}

	cfg := &container.Config{
		Image:        req.Ref(),
		Entrypoint:   strslice.StrSlice(req.entrypoint),
		Cmd:          strslice.StrSlice(req.cmd),
		Env:          env,
		ExposedPorts: exposed,
		Labels:       labels,
		User:         req.user,
		WorkingDir:   req.workdir,
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Mounts:       toDaemonMounts(req.mounts),
		ExtraHosts:   extraHosts,
		Privileged:   req.privileged,
		ShmSize:      req.shmSize,
		CgroupnsMode: container.CgroupnsMode(req.cgroupnsMode),
		UsernsMode:   container.UsernsMode(req.usernsMode),
	}
	switch {
	case req.networkMode != "":
		hostCfg.NetworkMode = container.NetworkMode(req.networkMode)
	case req.networkName != "":
		hostCfg.NetworkMode = container.NetworkMode(req.networkName)
	}

	var networkCfg *network.NetworkingConfig
	if req.networkName != "" && req.networkMode == "" {
		networkCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				req.networkName: {Aliases: req.networkAliases},
			},
		}
	}

	var platform *v1.Platform
	if req.platform != "" {
		os, arch, _ := strings.Cut(req.platform, "/")
		platform = &v1.Platform{OS: os, Architecture: arch}
	}

	// User modifier always runs last so it wins over request-derived fields.
	if req.modifyHostConfig != nil {
		req.modifyHostConfig(hostCfg)
	}

	return r.runtime.ContainerCreate(ctx, cfg, hostCfg, networkCfg, platform, req.name)
}

func toDaemonMounts(mounts []Mount) []mount.Mount {
	out := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		converted := mount.Mount{
			Target:   m.Target,
			Source:   m.Source,
			ReadOnly: m.ReadOnly,
		}
		switch m.Kind {
		case MountBind:
			converted.Type = mount.TypeBind
		case MountTmpfs:
			converted.Type = mount.TypeTmpfs
			converted.Source = ""
		case MountVolume:
			converted.Type = mount.TypeVolume
		}
		out = append(out, converted)
	}
	return out
}

func hasPreparer(strategies []wait.Strategy) bool {
	for _, s := range strategies {
		if _, ok := s.(wait.Preparer); ok {
			return true
		}
	}
	return false
}

// waitTarget adapts a Container to the probe surface the wait package needs.
type waitTarget struct {
	c *Container
}

func (t waitTarget) Host(ctx context.Context) (string, error) {
	return t.c.Host(ctx)
}

func (t waitTarget) MappedPort(ctx context.Context, port nat.Port) (nat.Port, error) {
	return t.c.MappedPort(ctx, port)
}

func (t waitTarget) Inspect(ctx context.Context) (container.InspectResponse, error) {
	return t.c.Inspect(ctx)
}

func (t waitTarget) Exec(ctx context.Context, cmd []string) (int, error) {
	result, err := t.c.Exec(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return result.ExitCode, nil
}

func (t waitTarget) SubscribeLogs(c logs.Consumer) *logs.Subscription {
	if t.c.pump == nil {
		return nil
	}
	return t.c.pump.Subscribe(c)
}
