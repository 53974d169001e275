package reaper

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"

	"github.com/irahardianto/drydock/internal/engine/daemon"
)

func resetRegistry() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.entries = map[string]Resource{}
	global.runtime = nil
	global.disabled = true // keep signal handlers out of unit tests
	global.installed = false
}

func TestSessionID_Stable(t *testing.T) {
	first := SessionID()
	if first == "" {
		t.Fatal("empty session id")
	}
	if second := SessionID(); second != first {
		t.Errorf("session id changed between calls: %q vs %q", first, second)
	}
}

func TestReapRegistered(t *testing.T) {
	resetRegistry()
	mock := &daemon.MockRuntime{}

	Register(mock, Resource{ContainerID: "c1", NetworkID: "n1"})
	Register(mock, Resource{ContainerID: "c2"})
	Deregister("c2")

	ReapRegistered(context.Background())

	if len(mock.RemovedIDs) != 1 || mock.RemovedIDs[0] != "c1" {
		t.Errorf("RemovedIDs = %v, want [c1]", mock.RemovedIDs)
	}
	if len(mock.NetworkRemoved) != 1 || mock.NetworkRemoved[0] != "n1" {
		t.Errorf("NetworkRemoved = %v, want [n1]", mock.NetworkRemoved)
	}

	// Second sweep finds an empty registry.
	mock.RemovedIDs = nil
	ReapRegistered(context.Background())
	if len(mock.RemovedIDs) != 0 {
		t.Errorf("second sweep removed %v, want nothing", mock.RemovedIDs)
	}
}

func TestReapSession(t *testing.T) {
	resetRegistry()
	mock := &daemon.MockRuntime{
		ListResp: []container.Summary{
			{ID: "leaked-1"},
			{ID: "leaked-2"},
		},
		NetworkListResp: []network.Summary{
			{ID: "leaked-net"},
		},
	}

	containers, networks, err := ReapSession(context.Background(), mock, "some-session")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if containers != 2 {
		t.Errorf("removed %d containers, want 2", containers)
	}
	if networks != 1 {
		t.Errorf("removed %d networks, want 1", networks)
	}
}
