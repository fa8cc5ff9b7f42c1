package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FeckMell/clientproxier/domain"
	"github.com/FeckMell/clientproxier/interfaces"
	"github.com/FeckMell/clientproxier/interfaces/mock"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// backendListener starts a real, empty gRPC server on loopback and returns its port, so that
// registerLocked's dial and ChannelFor's readiness wait have something real to connect to.
func backendListener(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	port := lis.Addr().(*net.TCPAddr).Port
	return port
}

func newTestManager(t *testing.T, port int, launcher interfaces.ProcessLauncher, provisioner interfaces.RuntimeEnvProvisioner) interfaces.SessionManager {
	t.Helper()
	portPool := &mock.PortPoolMock{
		AcquireFunc: func() (int, error) { return port, nil },
		ReleaseFunc: func(int) {},
	}
	cluster := &mock.ClusterBootstrapperMock{
		NodeLogDirFunc: func() (string, error) { return t.TempDir(), nil },
	}
	clock := &mock.TimeProviderMock{NowFunc: time.Now}
	m := NewSessionManager(portPool, launcher, provisioner, cluster, clock, log.NewNopLogger(),
		2*time.Second, time.Hour, t.TempDir(), "backend_server_binary", nil)
	t.Cleanup(m.ShutdownAll)
	return m
}

func readyLauncher() interfaces.ProcessLauncher {
	return &mock.ProcessLauncherMock{
		LaunchFunc: func(ctx context.Context, spec interfaces.SpawnSpec) (interfaces.SpawnedProcess, error) {
			return &mock.SpawnedProcessMock{
				CommandLineFunc: func() (string, bool) { return "backend_server_binary --port " + strconv.Itoa(spec.Port), true },
				PollFunc:        func() (int, bool) { return 0, false },
				KillFunc:        func() error { return nil },
			}, nil
		},
	}
}

func TestSessionManager_RegisterDuplicate(t *testing.T) {
	port := backendListener(t)
	m := newTestManager(t, port, readyLauncher(), nil)

	require.NoError(t, m.Register("c1"))
	err := m.Register("c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateClient)
}

func TestSessionManager_HappyPath(t *testing.T) {
	port := backendListener(t)
	m := newTestManager(t, port, readyLauncher(), nil)

	require.NoError(t, m.Register("c1"))
	running, err := m.Start(context.Background(), "c1", nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, running)

	info, ok := m.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, port, info.Port)
	assert.Equal(t, domain.BackendRunning, info.State)
	assert.True(t, m.HasChannel("c1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := m.ChannelFor(ctx, "c1")
	require.NoError(t, err)
	assert.NotNil(t, conn)
}

func TestSessionManager_ChannelFor_UnknownClient(t *testing.T) {
	port := backendListener(t)
	m := newTestManager(t, port, readyLauncher(), nil)

	_, err := m.ChannelFor(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestSessionManager_Start_ProcessExitsBeforeReady(t *testing.T) {
	port := backendListener(t)
	launcher := &mock.ProcessLauncherMock{
		LaunchFunc: func(ctx context.Context, spec interfaces.SpawnSpec) (interfaces.SpawnedProcess, error) {
			return &mock.SpawnedProcessMock{
				PollFunc: func() (int, bool) { return 1, true },
			}, nil
		},
	}
	m := newTestManager(t, port, launcher, nil)

	require.NoError(t, m.Register("c1"))
	running, err := m.Start(context.Background(), "c1", nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, running)

	info, ok := m.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, domain.BackendFailed, info.State)
}

func TestSessionManager_Start_AgentFailurePropagates(t *testing.T) {
	port := backendListener(t)
	wantErr := errors.New("agent down")
	provisioner := &mock.RuntimeEnvProvisionerMock{
		GetOrCreateRuntimeEnvFunc: func(ctx context.Context, serializedEnv, envConfig []byte, jobID string) (string, error) {
			assert.Equal(t, fmt.Sprintf("ray_client_server_%d", port), jobID)
			return "", wantErr
		},
	}
	m := newTestManager(t, port, readyLauncher(), provisioner)

	require.NoError(t, m.Register("c1"))
	running, err := m.Start(context.Background(), "c1", []byte("env"), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, running)

	info, _ := m.Lookup("c1")
	assert.Equal(t, domain.BackendFailed, info.State)
}

func TestSessionManager_ReconnectNewerStream_FinalizeIsNoop(t *testing.T) {
	port := backendListener(t)
	m := newTestManager(t, port, readyLauncher(), nil)

	oldStart := time.Now()
	require.NoError(t, m.BeginNew("c2", oldStart))
	assert.Equal(t, 1, m.NumClients())
	running, err := m.Start(context.Background(), "c2", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, running)

	newStart := oldStart.Add(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = m.Reconnect(ctx, "c2", newStart)
	require.NoError(t, err)

	m.FinalizeDatapath("c2", oldStart, false)
	assert.Equal(t, 1, m.NumClients(), "an old stream's finalize must not decrement once a newer stream reconnected")

	_, ok := m.Lookup("c2")
	assert.True(t, ok, "backend must still be registered after the no-op finalize")
}

func TestSessionManager_Reconnect_UnknownClient(t *testing.T) {
	port := backendListener(t)
	m := newTestManager(t, port, readyLauncher(), nil)

	_, err := m.Reconnect(context.Background(), "never-seen", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestSessionManager_FinalizeDatapath_Cleanup(t *testing.T) {
	port := backendListener(t)
	m := newTestManager(t, port, readyLauncher(), nil)

	start := time.Now()
	require.NoError(t, m.BeginNew("c3", start))
	assert.Equal(t, 1, m.NumClients())

	m.FinalizeDatapath("c3", start, true)
	assert.Equal(t, 0, m.NumClients())
	_, ok := m.Lookup("c3")
	assert.False(t, ok)
}

func TestSessionManager_Reaper_ReclaimsDeadBackend(t *testing.T) {
	port := backendListener(t)
	var released []int
	var exited atomic.Bool
	portPool := &mock.PortPoolMock{
		AcquireFunc: func() (int, error) { return port, nil },
		ReleaseFunc: func(p int) { released = append(released, p) },
	}
	launcher := &mock.ProcessLauncherMock{
		LaunchFunc: func(ctx context.Context, spec interfaces.SpawnSpec) (interfaces.SpawnedProcess, error) {
			return &mock.SpawnedProcessMock{
				CommandLineFunc: func() (string, bool) { return "backend_server_binary", true },
				PollFunc:        func() (int, bool) { return 0, exited.Load() },
			}, nil
		},
	}
	cluster := &mock.ClusterBootstrapperMock{NodeLogDirFunc: func() (string, error) { return t.TempDir(), nil }}
	clock := &mock.TimeProviderMock{NowFunc: time.Now}
	m := NewSessionManager(portPool, launcher, nil, cluster, clock, log.NewNopLogger(),
		2*time.Second, 50*time.Millisecond, t.TempDir(), "backend_server_binary", nil)
	defer m.ShutdownAll()

	require.NoError(t, m.Register("c4"))
	running, err := m.Start(context.Background(), "c4", nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, running)

	exited.Store(true)

	require.Eventually(t, func() bool {
		_, ok := m.Lookup("c4")
		return !ok
	}, 2*time.Second, 20*time.Millisecond, "reaper must reclaim a backend whose process has exited")
	assert.Contains(t, released, port)
}
