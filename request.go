// Package drydock is a test-harness library that drives ephemeral containers
// against a Docker-compatible daemon. Tests declare an image request, hand it
// to a Runner, and receive a container handle whose resources are removed
// when the handle is terminated or the process dies.
package drydock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"github.com/irahardianto/drydock/archive"
	"github.com/irahardianto/drydock/logs"
	"github.com/irahardianto/drydock/wait"
)

// PullPolicy controls when the image is pulled before create.
type PullPolicy int

const (
	// PullIfMissing pulls only when the image is absent locally.
	PullIfMissing PullPolicy = iota
	// PullAlways pulls on every start.
	PullAlways
)

// MountKind selects the mount mechanism.
type MountKind int

const (
	MountBind MountKind = iota
	MountTmpfs
	MountVolume
)

// Mount declares one container mount.
type Mount struct {
	Kind MountKind
	// Source is the host path (bind), volume name (volume), or unused (tmpfs).
	Source   string
	Target   string
	ReadOnly bool
}

// FixedPort pins a container port to a specific host port.
type FixedPort struct {
	HostPort      uint16
	ContainerPort nat.Port
}

type copyEntry struct {
	target string
	source archive.Source
}

type hostEntry struct {
	host string
	ip   string
}

// Request is an immutable declarative description of a desired container.
// Setters return a modified copy; the zero Request is not usable, start from
// NewRequest.
type Request struct {
	image            string
	tag              string
	entrypoint       []string
	cmd              []string
	env              map[string]string
	exposedPorts     []nat.Port
	mappedPorts      []FixedPort
	exposedHostPorts []uint16
	mounts           []Mount
	copies           []copyEntry
	strategies       []wait.Strategy
	startupTimeout   time.Duration
	name             string
	networkName      string
	networkAliases   []string
	networkMode      string
	hosts            []hostEntry
	privileged       bool
	shmSize          int64
	cgroupnsMode     string
	usernsMode       string
	modifyHostConfig func(*container.HostConfig)
	consumers        []logs.Consumer
	reuseKey         string
	user             string
	workdir          string
	pull             PullPolicy
	platform         string
}

// NewRequest starts a request for the given image reference. A tag embedded
// in the reference is honored; without one the tag defaults to latest.
func NewRequest(image string) Request {
	name, tag := splitRef(image)
	return Request{
		image: name,
		tag:   tag,
	}
}

func splitRef(ref string) (string, string) {
	slash := strings.LastIndex(ref, "/")
	if colon := strings.LastIndex(ref, ":"); colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, "latest"
}

// Ref returns the full image reference the request resolves to.
func (r Request) Ref() string {
	tag := r.tag
	if tag == "" {
		tag = "latest"
	}
	return r.image + ":" + tag
}

// WithTag overrides the image tag.
func (r Request) WithTag(tag string) Request {
	r.tag = tag
	return r
}

// WithEntrypoint overrides the image entrypoint.
func (r Request) WithEntrypoint(entrypoint ...string) Request {
	r.entrypoint = slices.Clone(entrypoint)
	return r
}

// WithCmd overrides the image command.
func (r Request) WithCmd(cmd ...string) Request {
	r.cmd = slices.Clone(cmd)
	return r
}

// WithEnv sets one environment variable.
func (r Request) WithEnv(key, value string) Request {
	env := maps.Clone(r.env)
	if env == nil {
		env = map[string]string{}
	}
	env[key] = value
	r.env = env
	return r
}

// WithExposedPorts asks the daemon to publish the given container ports on
// host-chosen free ports. Ports are "port/proto" strings; a bare number
// defaults to tcp.
func (r Request) WithExposedPorts(ports ...string) Request {
	cloned := slices.Clone(r.exposedPorts)
	for _, p := range ports {
		cloned = append(cloned, toNatPort(p))
	}
	r.exposedPorts = cloned
	return r
}

// WithFixedPort publishes containerPort on a specific host port.
func (r Request) WithFixedPort(hostPort uint16, containerPort string) Request {
	r.mappedPorts = append(slices.Clone(r.mappedPorts), FixedPort{
		HostPort:      hostPort,
		ContainerPort: toNatPort(containerPort),
	})
	return r
}

// WithExposedHostPorts makes the given host TCP ports reachable from inside
// the container as host.testcontainers.internal:<port>.
func (r Request) WithExposedHostPorts(ports ...uint16) Request {
	r.exposedHostPorts = append(slices.Clone(r.exposedHostPorts), ports...)
	return r
}

// WithMount adds a mount.
func (r Request) WithMount(m Mount) Request {
	r.mounts = append(slices.Clone(r.mounts), m)
	return r
}

// WithCopy schedules src to be uploaded to target before the container starts.
func (r Request) WithCopy(target string, src archive.Source) Request {
	r.copies = append(slices.Clone(r.copies), copyEntry{target: target, source: src})
	return r
}

// WithCopyBytes schedules an in-memory payload for upload before start.
func (r Request) WithCopyBytes(target string, data []byte) Request {
	return r.WithCopy(target, archive.Bytes{Data: data})
}

// WithCopyFile schedules a host file or directory tree for upload before start.
func (r Request) WithCopyFile(target, hostPath string) Request {
	return r.WithCopy(target, archive.HostPath(hostPath))
}

// WithWaitStrategy appends readiness conditions; all must succeed.
func (r Request) WithWaitStrategy(strategies ...wait.Strategy) Request {
	r.strategies = append(slices.Clone(r.strategies), strategies...)
	return r
}

// WithStartupTimeout bounds the readiness phase. Pull time is not counted.
func (r Request) WithStartupTimeout(d time.Duration) Request {
	r.startupTimeout = d
	return r
}

// WithName assigns a fixed container name.
func (r Request) WithName(name string) Request {
	r.name = name
	return r
}

// WithNetwork attaches the container to the named user-defined network,
// creating it if it does not exist. A network created this way is owned by
// the handle and removed with it.
func (r Request) WithNetwork(name string) Request {
	r.networkName = name
	return r
}

// WithNetworkAliases sets the container's aliases on its user-defined network.
func (r Request) WithNetworkAliases(aliases ...string) Request {
	r.networkAliases = slices.Clone(aliases)
	return r
}

// WithNetworkMode sets the raw network mode (host, none, container:<id>).
func (r Request) WithNetworkMode(mode string) Request {
	r.networkMode = mode
	return r
}

// WithExtraHost injects an /etc/hosts entry.
func (r Request) WithExtraHost(host, ip string) Request {
	r.hosts = append(slices.Clone(r.hosts), hostEntry{host: host, ip: ip})
	return r
}

// WithPrivileged runs the container in privileged mode.
func (r Request) WithPrivileged() Request {
	r.privileged = true
	return r
}

// WithShmSize sets /dev/shm size in bytes.
func (r Request) WithShmSize(bytes int64) Request {
	r.shmSize = bytes
	return r
}

// WithCgroupnsMode sets the cgroup namespace mode.
func (r Request) WithCgroupnsMode(mode string) Request {
	r.cgroupnsMode = mode
	return r
}

// WithUsernsMode sets the user namespace mode.
func (r Request) WithUsernsMode(mode string) Request {
	r.usernsMode = mode
	return r
}

// WithHostConfigModifier registers a callback invoked once, after all other
// request-derived daemon fields are set, immediately before create. A later
// call replaces an earlier one.
func (r Request) WithHostConfigModifier(modify func(*container.HostConfig)) Request {
	r.modifyHostConfig = modify
	return r
}

// WithLogConsumers subscribes sinks to the container's log frames.
func (r Request) WithLogConsumers(consumers ...logs.Consumer) Request {
	r.consumers = append(slices.Clone(r.consumers), consumers...)
	return r
}

// WithReuse tags the container for adoption by later runs with the same key
// instead of being recreated. Reused containers are not removed on terminate.
func (r Request) WithReuse(key string) Request {
	r.reuseKey = key
	return r
}

// WithUser sets the user the container process runs as.
func (r Request) WithUser(user string) Request {
	r.user = user
	return r
}

// WithWorkingDir sets the container working directory.
func (r Request) WithWorkingDir(dir string) Request {
	r.workdir = dir
	return r
}

// WithPullPolicy overrides the default if-missing pull behavior.
func (r Request) WithPullPolicy(policy PullPolicy) Request {
	r.pull = policy
	return r
}

// WithPlatform requests a specific platform (e.g. linux/amd64) on create.
func (r Request) WithPlatform(platform string) Request {
	r.platform = platform
	return r
}

func toNatPort(p string) nat.Port {
	if !strings.Contains(p, "/") {
		p += "/tcp"
	}
	return nat.Port(p)
}

// Validate checks the request without performing any I/O. Run calls this
// before touching the daemon.
func (r Request) Validate() error {
	if r.image == "" {
		return &InvalidRequestError{Reason: "image name must not be empty"}
	}

	for _, p := range r.exposedHostPorts {
		switch p {
		case 0:
			return &InvalidRequestError{Reason: "exposed host port 0 is invalid"}
		case 22:
			return &InvalidRequestError{Reason: "exposed host port 22 collides with the tunnel sidecar"}
		}
	}
	if len(r.exposedHostPorts) > 0 {
		if r.reuseKey != "" {
			return &InvalidRequestError{Reason: "host port exposure cannot be combined with container reuse"}
		}
		if r.networkMode == "host" || strings.HasPrefix(r.networkMode, "container:") {
			return &InvalidRequestError{Reason: fmt.Sprintf("host port exposure cannot be combined with network mode %q", r.networkMode)}
		}
	}

	seen := map[string]bool{}
	for _, m := range r.mounts {
		if m.Target == "" {
			return &InvalidRequestError{Reason: "mount target must not be empty"}
		}
		if seen[m.Target] {
			return &InvalidRequestError{Reason: fmt.Sprintf("duplicate mount target %q", m.Target)}
		}
		seen[m.Target] = true
	}

	for _, c := range r.copies {
		if c.target == "" {
			return &InvalidRequestError{Reason: "copy-in target must not be empty"}
		}
	}

	return nil
}

// reuseHash derives the stable identity of a reusable request.
func (r Request) reuseHash() string {
	var b strings.Builder
	b.WriteString(r.Ref())
	b.WriteByte('|')
	b.WriteString(strings.Join(r.entrypoint, "\x00"))
	b.WriteByte('|')
	b.WriteString(strings.Join(r.cmd, "\x00"))
	b.WriteByte('|')
	keys := make([]string, 0, len(r.env))
	for k := range r.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k + "=" + r.env[k] + "\x00")
	}
	b.WriteByte('|')
	b.WriteString(r.networkName)
	b.WriteByte('|')
	b.WriteString(r.reuseKey)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
