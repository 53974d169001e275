package daemon

import (
	"context"
	"io"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// MockRuntime is a test double for Runtime. Canned responses are set through
// the exported fields; *Func fields override the canned value when dynamic
// behavior is needed. Calls that mutate daemon state are recorded.
type MockRuntime struct {
	mu sync.Mutex

	PingErr error

	ImagePullErr    error
	ImagePullReader io.ReadCloser
	PulledRefs      []string

	ImageInspectResp image.InspectResponse
	ImageInspectErr  error

	CreateResp    container.CreateResponse
	CreateErr     error
	CreateFunc    func(config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, name string) (container.CreateResponse, error)
	CreatedConfig *container.Config
	CreatedHost   *container.HostConfig
	CreatedNet    *network.NetworkingConfig
	CreatedName   string

	StartErr     error
	StartedIDs   []string
	StopErr      error
	StoppedIDs   []string
	KillErr      error
	PauseErr     error
	UnpauseErr   error
	PausedIDs    []string
	UnpausedIDs  []string
	RemoveErr    error
	RemovedIDs   []string
	InspectResp  container.InspectResponse
	InspectErr   error
	InspectFunc  func(containerID string) (container.InspectResponse, error)
	ListResp     []container.Summary
	ListErr      error
	WaitResp     container.WaitResponse
	WaitErr      error
	LogsReader   io.ReadCloser
	LogsErr      error
	LogsFunc     func(options container.LogsOptions) (io.ReadCloser, error)

	CopyToErr     error
	CopyToPaths   []string
	CopyToContent [][]byte
	CopyFromRC    io.ReadCloser
	CopyFromStat  container.PathStat
	CopyFromErr   error

	ExecCreateResp  container.ExecCreateResponse
	ExecCreateErr   error
	ExecCreated     []container.ExecOptions
	ExecAttachResp  types.HijackedResponse
	ExecAttachErr   error
	ExecInspectResp container.ExecInspect
	ExecInspectErr  error
	ExecInspectFunc func(execID string) (container.ExecInspect, error)

	NetworkCreateResp  network.CreateResponse
	NetworkCreateErr   error
	NetworkCreated     []string
	NetworkInspectResp network.Inspect
	NetworkInspectErr  error
	NetworkInspectFunc func(networkID string) (network.Inspect, error)
	NetworkConnectErr  error
	NetworkRemoveErr   error
	NetworkRemoved     []string
	NetworkListResp    []network.Summary
	NetworkListErr     error
}

func (m *MockRuntime) Ping(_ context.Context) error {
	return m.PingErr
}

func (m *MockRuntime) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	m.PulledRefs = append(m.PulledRefs, ref)
	m.mu.Unlock()
	return m.ImagePullReader, m.ImagePullErr
}

func (m *MockRuntime) ImageInspect(_ context.Context, _ string) (image.InspectResponse, error) {
	return m.ImageInspectResp, m.ImageInspectErr
}

func (m *MockRuntime) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, _ *v1.Platform, name string) (container.CreateResponse, error) {
	m.mu.Lock()
	m.CreatedConfig = config
	m.CreatedHost = hostConfig
	m.CreatedNet = networkingConfig
	m.CreatedName = name
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(config, hostConfig, networkingConfig, name)
	}
	return m.CreateResp, m.CreateErr
}

func (m *MockRuntime) ContainerStart(_ context.Context, containerID string, _ container.StartOptions) error {
	m.mu.Lock()
	m.StartedIDs = append(m.StartedIDs, containerID)
	m.mu.Unlock()
	return m.StartErr
}

func (m *MockRuntime) ContainerStop(_ context.Context, containerID string, _ container.StopOptions) error {
	m.mu.Lock()
	m.StoppedIDs = append(m.StoppedIDs, containerID)
	m.mu.Unlock()
	return m.StopErr
}

func (m *MockRuntime) ContainerKill(_ context.Context, _, _ string) error {
	return m.KillErr
}

func (m *MockRuntime) ContainerPause(_ context.Context, containerID string) error {
	m.mu.Lock()
	m.PausedIDs = append(m.PausedIDs, containerID)
	m.mu.Unlock()
	return m.PauseErr
}

func (m *MockRuntime) ContainerUnpause(_ context.Context, containerID string) error {
	m.mu.Lock()
	m.UnpausedIDs = append(m.UnpausedIDs, containerID)
	m.mu.Unlock()
	return m.UnpauseErr
}

func (m *MockRuntime) ContainerInspect(_ context.Context, containerID string) (container.InspectResponse, error) {
	if m.InspectFunc != nil {
		return m.InspectFunc(containerID)
	}
	return m.InspectResp, m.InspectErr
}

func (m *MockRuntime) ContainerList(_ context.Context, _ container.ListOptions) ([]container.Summary, error) {
	return m.ListResp, m.ListErr
}

func (m *MockRuntime) ContainerRemove(_ context.Context, containerID string, _ container.RemoveOptions) error {
	m.mu.Lock()
	m.RemovedIDs = append(m.RemovedIDs, containerID)
	m.mu.Unlock()
	return m.RemoveErr
}

func (m *MockRuntime) ContainerWait(_ context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	respCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	if m.WaitErr != nil {
		errCh <- m.WaitErr
	} else {
		respCh <- m.WaitResp
	}
	return respCh, errCh
}

func (m *MockRuntime) ContainerLogs(_ context.Context, _ string, options container.LogsOptions) (io.ReadCloser, error) {
	if m.LogsFunc != nil {
		return m.LogsFunc(options)
	}
	return m.LogsReader, m.LogsErr
}

func (m *MockRuntime) CopyToContainer(_ context.Context, _, dstPath string, content io.Reader, _ container.CopyToContainerOptions) error {
	data, _ := io.ReadAll(content)
	m.mu.Lock()
	m.CopyToPaths = append(m.CopyToPaths, dstPath)
	m.CopyToContent = append(m.CopyToContent, data)
	m.mu.Unlock()
	return m.CopyToErr
}

func (m *MockRuntime) CopyFromContainer(_ context.Context, _, _ string) (io.ReadCloser, container.PathStat, error) {
	return m.CopyFromRC, m.CopyFromStat, m.CopyFromErr
}

func (m *MockRuntime) ContainerExecCreate(_ context.Context, _ string, config container.ExecOptions) (container.ExecCreateResponse, error) {
	m.mu.Lock()
	m.ExecCreated = append(m.ExecCreated, config)
	m.mu.Unlock()
	return m.ExecCreateResp, m.ExecCreateErr
}

func (m *MockRuntime) ContainerExecAttach(_ context.Context, _ string, _ container.ExecAttachOptions) (types.HijackedResponse, error) {
	return m.ExecAttachResp, m.ExecAttachErr
}

func (m *MockRuntime) ContainerExecInspect(_ context.Context, execID string) (container.ExecInspect, error) {
	if m.ExecInspectFunc != nil {
		return m.ExecInspectFunc(execID)
	}
	return m.ExecInspectResp, m.ExecInspectErr
}

func (m *MockRuntime) NetworkCreate(_ context.Context, name string, _ network.CreateOptions) (network.CreateResponse, error) {
	m.mu.Lock()
	m.NetworkCreated = append(m.NetworkCreated, name)
	m.mu.Unlock()
	return m.NetworkCreateResp, m.NetworkCreateErr
}

func (m *MockRuntime) NetworkInspect(_ context.Context, networkID string, _ network.InspectOptions) (network.Inspect, error) {
	if m.NetworkInspectFunc != nil {
		return m.NetworkInspectFunc(networkID)
	}
	return m.NetworkInspectResp, m.NetworkInspectErr
}

func (m *MockRuntime) NetworkConnect(_ context.Context, _, _ string, _ *network.EndpointSettings) error {
	return m.NetworkConnectErr
}

func (m *MockRuntime) NetworkRemove(_ context.Context, networkID string) error {
	m.mu.Lock()
	m.NetworkRemoved = append(m.NetworkRemoved, networkID)
	m.mu.Unlock()
	return m.NetworkRemoveErr
}

func (m *MockRuntime) NetworkList(_ context.Context, _ network.ListOptions) ([]network.Summary, error) {
	return m.NetworkListResp, m.NetworkListErr
}
