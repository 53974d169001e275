// Package reaper is the process-wide janitor for harness-created resources.
//
// Every container and network the lifecycle engine allocates is registered
// here, keyed by the process session id, and deregistered on normal
// teardown. If the test process dies to a signal, the installed handler
// force-removes whatever is still registered so no daemon-side garbage
// outlives the run.
package reaper

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/google/uuid"

	"github.com/irahardianto/drydock/internal/engine/daemon"
	"github.com/irahardianto/drydock/internal/platform/logger"
)

// Labels stamped on every harness-created resource.
const (
	SessionLabel   = "org.testcontainers.session-id"
	ReusableLabel  = "org.testcontainers.reusable"
	ReuseHashLabel = "org.testcontainers.reuse-hash"
)

// reapTimeout bounds the emergency sweep so a wedged daemon cannot keep the
// process alive indefinitely.
const reapTimeout = 10 * time.Second

// Resource is one registered allocation. NetworkID is set only when the
// network is owned by the handle that registered it.
type Resource struct {
	ContainerID string
	NetworkID   string
}

type registry struct {
	mu        sync.Mutex
	sessionID string
	entries   map[string]Resource // keyed by container id
	runtime   daemon.Runtime
	installed bool
	disabled  bool
}

var global = &registry{entries: map[string]Resource{}}

// SessionID returns the process-wide session UUID, sampled once at first use.
func SessionID() string {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.sessionID == "" {
		global.sessionID = uuid.NewString()
	}
	return global.sessionID
}

// Disable turns the signal-driven sweep off for this process. Registration
// still works so explicit cleanup keeps functioning.
func Disable() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.disabled = true
}

// Register adds a resource to the registry and lazily installs the signal
// handler. The latest runtime wins; all harness runtimes talk to the same
// daemon within one process.
func Register(rt daemon.Runtime, res Resource) {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.runtime = rt
	global.entries[res.ContainerID] = res

	if !global.installed && !global.disabled {
		global.installed = true
		go watchSignals()
	}
}

// Deregister removes a container's entry after normal teardown.
func Deregister(containerID string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	delete(global.entries, containerID)
}

func watchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch

	ctx, cancel := context.WithTimeout(context.Background(), reapTimeout)
	defer cancel()
	ReapRegistered(ctx)

	// Re-deliver so the process still dies with the conventional status.
	signal.Stop(ch)
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(sig)
	}
}

// ReapRegistered force-removes everything still in the registry. Errors are
// logged, never returned; removal continues past failures.
func ReapRegistered(ctx context.Context) {
	global.mu.Lock()
	rt := global.runtime
	entries := make([]Resource, 0, len(global.entries))
	for _, res := range global.entries {
		entries = append(entries, res)
	}
	global.entries = map[string]Resource{}
	global.mu.Unlock()

	if rt == nil {
		return
	}
	log := logger.FromContext(ctx)

	for _, res := range entries {
		if err := rt.ContainerRemove(ctx, res.ContainerID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			log.Error("reaper failed to remove container", "container_id", res.ContainerID, "error", err)
		}
	}
	// Networks second: they only detach once their containers are gone.
	for _, res := range entries {
		if res.NetworkID == "" {
			continue
		}
		if err := rt.NetworkRemove(ctx, res.NetworkID); err != nil {
			log.Error("reaper failed to remove network", "network_id", res.NetworkID, "error", err)
		}
	}
}

// ReapSession removes every daemon resource labelled with the given session
// id, registered in this process or not. Used by the cleanup CLI to sweep
// leaked resources from dead test runs. An empty session id sweeps all
// harness-labelled resources. Returns the number of removed containers and
// networks.
func ReapSession(ctx context.Context, rt daemon.Runtime, sessionID string) (int, int, error) {
	log := logger.FromContext(ctx)

	label := SessionLabel
	if sessionID != "" {
		label = fmt.Sprintf("%s=%s", SessionLabel, sessionID)
	}

	containers, err := rt.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", label)),
	})
	if err != nil {
		return 0, 0, err
	}

	removed := 0
	for _, c := range containers {
		if err := rt.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			log.Error("failed to remove container", "container_id", c.ID, "error", err)
			continue
		}
		removed++
	}

	networks, err := rt.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", label)),
	})
	if err != nil {
		return removed, 0, err
	}

	removedNets := 0
	for _, n := range networks {
		if err := rt.NetworkRemove(ctx, n.ID); err != nil {
			log.Error("failed to remove network", "network_id", n.ID, "error", err)
			continue
		}
		removedNets++
	}

	return removed, removedNets, nil
}
