package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/FeckMell/clientproxier/domain"
	"github.com/FeckMell/clientproxier/helpers"
	"github.com/FeckMell/clientproxier/interfaces"
	"github.com/FeckMell/clientproxier/metrics"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// sessionEntry is one row of the session table: a backend's port, its one-shot process future
// and the pre-opened channel to it. The channel is created at registration
// and never replaced, so it is safe to read without the session mutex once obtained. sessionID is
// a correlation id minted once per registration, carried through every log line for that backend's
// lifecycle so creation, readiness, reconnects and reap can be traced across a busy log stream.
type sessionEntry struct {
	port      int
	sessionID string
	handle    *backendHandle
	conn      *grpc.ClientConn
}

// sessionManager implements interfaces.SessionManager: one dedicated backend process per client
// id, one mutex guarding the table and its auxiliary maps, a constructor that starts its own
// reaper goroutine. No method takes the session mutex while already holding it: paths that need
// registration inside a larger critical section (BeginNew) call the private *Locked helper, and
// methods that lock more than once (Reconnect, FinalizeDatapath) release it in between, so no
// reentrant lock is needed.
type sessionManager struct {
	portPool    interfaces.PortPool
	launcher    interfaces.ProcessLauncher
	provisioner interfaces.RuntimeEnvProvisioner
	cluster     interfaces.ClusterBootstrapper
	clock       interfaces.TimeProvider
	logger      log.Logger
	metrics     *metrics.SessionMetrics

	channelTimeout  time.Duration
	reapInterval    time.Duration
	backendLogDir   string
	backendReadyTag string

	mu           sync.Mutex
	backends     map[domain.ClientID]*sessionEntry
	lastSeen     map[domain.ClientID]time.Time
	graceSeconds map[domain.ClientID]time.Duration
	numClients   int

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewSessionManager builds the session manager and starts its reaper goroutine. Panics on nil
// portPool/launcher/cluster/clock/logger (provisioner may be nil iff no client ever declares a
// non-empty serialized runtime env; Start returns an error at that point rather than panicking
// here, since a proxier without env provisioning configured is a valid deployment).
//
// Parameters: portPool, launcher, provisioner, cluster, clock — the collaborator interfaces;
// logger — base logger, "component"="session_manager" is added; channelTimeout — bound on
// ChannelFor's readiness wait; reapInterval — the reaper's scan period; backendLogDir — directory
// for per-backend stdout/stderr files; backendReadyTag — substring identifying the backend
// binary's command line once the shim has exec'd into it.
//
// Returns: interfaces.SessionManager (*sessionManager).
//
// Called from cmd/main when assembling the proxier.
func NewSessionManager(
	portPool interfaces.PortPool,
	launcher interfaces.ProcessLauncher,
	provisioner interfaces.RuntimeEnvProvisioner,
	cluster interfaces.ClusterBootstrapper,
	clock interfaces.TimeProvider,
	logger log.Logger,
	channelTimeout time.Duration,
	reapInterval time.Duration,
	backendLogDir string,
	backendReadyTag string,
	sessionMetrics *metrics.SessionMetrics,
) interfaces.SessionManager {
	m := &sessionManager{
		portPool:        helpers.NilPanic(portPool, "service.session_manager.go: portPool is required"),
		launcher:        helpers.NilPanic(launcher, "service.session_manager.go: launcher is required"),
		provisioner:     provisioner,
		cluster:         helpers.NilPanic(cluster, "service.session_manager.go: cluster is required"),
		clock:           helpers.NilPanic(clock, "service.session_manager.go: clock is required"),
		logger:          log.With(helpers.NilPanic(logger, "service.session_manager.go: logger is required"), "component", "session_manager"),
		metrics:         sessionMetrics,
		channelTimeout:  channelTimeout,
		reapInterval:    reapInterval,
		backendLogDir:   backendLogDir,
		backendReadyTag: backendReadyTag,
		backends:        make(map[domain.ClientID]*sessionEntry),
		lastSeen:        make(map[domain.ClientID]time.Time),
		graceSeconds:    make(map[domain.ClientID]time.Duration),
		stopped:         make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// observeSessionCreated/observeReconnected/observeReaped/observeStartFailure/observeReclaimed are
// no-ops when no metrics were supplied (sessionMetrics is nil in several unit tests that don't
// care about the ambient observability surface).
func (m *sessionManager) observeSessionCreated() {
	if m.metrics == nil {
		return
	}
	m.metrics.SessionsCreated.Inc()
	m.metrics.ActiveBackends.Inc()
	m.metrics.PortsInUse.Inc()
	m.metrics.PortsFree.Dec()
}

func (m *sessionManager) observeReconnected() {
	if m.metrics == nil {
		return
	}
	m.metrics.SessionsReconnected.Inc()
}

func (m *sessionManager) observeReclaimed() {
	if m.metrics == nil {
		return
	}
	m.metrics.ActiveBackends.Dec()
	m.metrics.PortsInUse.Dec()
	m.metrics.PortsFree.Inc()
}

func (m *sessionManager) observeReaped() {
	if m.metrics == nil {
		return
	}
	m.metrics.SessionsReaped.Inc()
}

func (m *sessionManager) observeStartFailure(reason string) {
	if m.metrics == nil {
		return
	}
	m.metrics.SessionsFailed.WithLabelValues(reason).Inc()
}

// Register implements interfaces.SessionManager.
func (m *sessionManager) Register(clientID domain.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerLocked(clientID)
}

// registerLocked performs the actual port-acquire/dial/table-insert sequence of Register. Callers
// must hold m.mu; this never itself locks, so BeginNew can call it as part of one atomic critical
// section.
func (m *sessionManager) registerLocked(clientID domain.ClientID) error {
	if _, exists := m.backends[clientID]; exists {
		return fmt.Errorf("register %q: %w", clientID, ErrDuplicateClient)
	}
	port, err := m.portPool.Acquire()
	if err != nil {
		return fmt.Errorf("register %q: %w", clientID, err)
	}
	conn, err := grpc.NewClient(
		fmt.Sprintf("127.0.0.1:%d", port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		m.portPool.Release(port)
		return fmt.Errorf("register %q: dial backend: %w", clientID, err)
	}
	sessionID := uuid.NewString()
	m.backends[clientID] = &sessionEntry{port: port, sessionID: sessionID, handle: newBackendHandle(), conn: conn}
	m.observeSessionCreated()
	level.Info(m.logger).Log("msg", "registered client", "client_id", clientID, "session_id", sessionID, "port", port)
	return nil
}

// Start implements interfaces.SessionManager.
func (m *sessionManager) Start(ctx context.Context, clientID domain.ClientID, serializedEnv, envConfig, jobConfig []byte) (bool, error) {
	entry, ok := m.entryFor(clientID)
	if !ok {
		return false, fmt.Errorf("start %q: %w", clientID, ErrClientNotFound)
	}

	runtimeEnvContext := ""
	jobID := fmt.Sprintf("ray_client_server_%d", entry.port)
	if len(serializedEnv) > 0 {
		if m.provisioner == nil {
			entry.handle.SetResult(nil)
			m.observeStartFailure("agent_not_configured")
			return false, fmt.Errorf("start %q: no runtime-env agent configured", clientID)
		}
		provisionStart := m.clock.Now()
		ctxVal, err := m.provisioner.GetOrCreateRuntimeEnv(ctx, serializedEnv, envConfig, jobID)
		if m.metrics != nil {
			m.metrics.ObserveRuntimeEnvDuration(m.clock.Now().Sub(provisionStart))
		}
		if err != nil {
			entry.handle.SetResult(nil)
			m.observeStartFailure("runtime_env")
			level.Info(m.logger).Log("msg", "runtime env provisioning failed", "client_id", clientID, "session_id", entry.sessionID, "err", err)
			return false, err
		}
		runtimeEnvContext = ctxVal
	}

	nodeLogDir := m.backendLogDir
	if dir, err := m.cluster.NodeLogDir(); err == nil && dir != "" {
		nodeLogDir = dir
	}
	spec := interfaces.SpawnSpec{
		Port:              entry.port,
		RuntimeEnvContext: runtimeEnvContext,
		JobID:             jobID,
		StdoutPath:        filepath.Join(nodeLogDir, fmt.Sprintf("%d.out.log", entry.port)),
		StderrPath:        filepath.Join(nodeLogDir, fmt.Sprintf("%d.err.log", entry.port)),
	}
	_ = jobConfig // opaque, never interpreted

	// The backend outlives the Datapath stream that started it (reconnect grace, reaper,
	// FinalizeDatapath and ShutdownAll end it), so the stream's cancellation is not passed on.
	proc, err := m.launcher.Launch(context.WithoutCancel(ctx), spec)
	if err != nil {
		entry.handle.SetResult(nil)
		m.observeStartFailure("spawn")
		return false, fmt.Errorf("start %q: %w: %v", clientID, ErrStartupFailed, err)
	}

	return m.awaitReadiness(ctx, clientID, entry, proc)
}

// awaitReadiness polls proc's command line every 500ms until it matches backendReadyTag or the
// process exits, whichever is first: a shim may exec into the real binary, and proxying to it
// before the exec completes breaks the first RPC. Platforms without cheap introspection
// (CommandLine returning ok=false while the process is still running) skip the wait entirely and
// trust the spawn.
func (m *sessionManager) awaitReadiness(ctx context.Context, clientID domain.ClientID, entry *sessionEntry, proc interfaces.SpawnedProcess) (bool, error) {
	const pollInterval = 500 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if code, exited := proc.Poll(); exited {
			entry.handle.SetResult(nil)
			level.Info(m.logger).Log("msg", "backend exited before readiness", "client_id", clientID, "session_id", entry.sessionID, "exit_code", code)
			return false, nil
		}
		cmdline, ok := proc.CommandLine()
		if !ok {
			entry.handle.SetResult(proc)
			return true, nil
		}
		if strings.Contains(cmdline, m.backendReadyTag) {
			entry.handle.SetResult(proc)
			return true, nil
		}
		select {
		case <-ctx.Done():
			entry.handle.SetResult(nil)
			return false, ctx.Err()
		case <-m.stopped:
			entry.handle.SetResult(nil)
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Lookup implements interfaces.SessionManager.
func (m *sessionManager) Lookup(clientID domain.ClientID) (domain.BackendInfo, bool) {
	m.mu.Lock()
	entry, ok := m.backends[clientID]
	m.mu.Unlock()
	if !ok {
		return domain.BackendInfo{}, false
	}
	return domain.BackendInfo{ClientID: clientID, Port: entry.port, State: entry.handle.State()}, true
}

// ChannelFor implements interfaces.SessionManager.
func (m *sessionManager) ChannelFor(ctx context.Context, clientID domain.ClientID) (*grpc.ClientConn, error) {
	entry, ok := m.entryFor(clientID)
	if !ok {
		return nil, fmt.Errorf("channel_for %q: %w", clientID, ErrClientNotFound)
	}

	deadline := m.clock.Now().Add(m.channelTimeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := entry.handle.WaitReady(waitCtx, time.Until(deadline)); err != nil {
		if err == ErrStartupFailed {
			return nil, err
		}
		return nil, fmt.Errorf("channel_for %q: %w", clientID, ErrChannelTimeout)
	}

	entry.conn.Connect()
	for {
		state := entry.conn.GetState()
		if state == connectivity.Ready {
			return entry.conn, nil
		}
		if !entry.conn.WaitForStateChange(waitCtx, state) {
			return nil, fmt.Errorf("channel_for %q: %w", clientID, ErrChannelTimeout)
		}
	}
}

// HasChannel implements interfaces.SessionManager.
func (m *sessionManager) HasChannel(clientID domain.ClientID) bool {
	m.mu.Lock()
	entry, ok := m.backends[clientID]
	m.mu.Unlock()
	return ok && entry.handle.Ready()
}

// ShutdownAll implements interfaces.SessionManager. Idempotent: the stopped signal is closed at
// most once, so a second call only re-kills already-dead processes (a harmless no-op per
// ForceKill's contract).
func (m *sessionManager) ShutdownAll() {
	m.stopOnce.Do(func() { close(m.stopped) })

	m.mu.Lock()
	entries := make([]*sessionEntry, 0, len(m.backends))
	for _, entry := range m.backends {
		entries = append(entries, entry)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		if err := entry.handle.ForceKill(); err != nil {
			level.Info(m.logger).Log("msg", "force kill failed during shutdown", "err", err)
		}
	}
}

// Reconnect implements interfaces.SessionManager.
func (m *sessionManager) Reconnect(ctx context.Context, clientID domain.ClientID, startTime time.Time) (*grpc.ClientConn, error) {
	m.mu.Lock()
	if _, ok := m.lastSeen[clientID]; !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("reconnect %q: %w", clientID, ErrClientNotFound)
	}
	m.lastSeen[clientID] = startTime
	m.mu.Unlock()
	m.observeReconnected()
	return m.ChannelFor(ctx, clientID)
}

// BeginNew implements interfaces.SessionManager.
func (m *sessionManager) BeginNew(clientID domain.ClientID, startTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registerLocked(clientID); err != nil {
		return err
	}
	m.lastSeen[clientID] = startTime
	m.numClients++
	return nil
}

// RecordGracePeriod implements interfaces.SessionManager.
func (m *sessionManager) RecordGracePeriod(clientID domain.ClientID, seconds uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graceSeconds[clientID] = time.Duration(seconds) * time.Second
}

// GracePeriod implements interfaces.SessionManager.
func (m *sessionManager) GracePeriod(clientID domain.ClientID) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.graceSeconds[clientID]
	return d, ok
}

// NumClients implements interfaces.SessionManager.
func (m *sessionManager) NumClients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numClients
}

// FinalizeDatapath implements interfaces.SessionManager.
//
// The backend binary cannot be assumed to self-terminate on client loss, so finalize also
// force-kills the process and reclaims the table entry and port immediately, rather than leaving
// that solely to the reaper's next pass. SetResult's idempotence makes an already-finalized
// backend's second resolution a safe no-op.
func (m *sessionManager) FinalizeDatapath(clientID domain.ClientID, startTime time.Time, cleanupRequested bool) {
	if !cleanupRequested {
		if grace, ok := m.GracePeriod(clientID); ok && grace > 0 {
			select {
			case <-time.After(grace):
			case <-m.stopped:
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen, ok := m.lastSeen[clientID]
	if !ok {
		return
	}
	if seen.After(startTime) {
		return
	}

	m.numClients--
	delete(m.lastSeen, clientID)
	delete(m.graceSeconds, clientID)

	entry, ok := m.backends[clientID]
	if !ok {
		return
	}
	entry.handle.SetResult(nil)
	if err := entry.handle.ForceKill(); err != nil {
		level.Info(m.logger).Log("msg", "force kill failed during finalize", "client_id", clientID, "session_id", entry.sessionID, "err", err)
	}
	_ = entry.conn.Close()
	m.portPool.Release(entry.port)
	delete(m.backends, clientID)
	m.observeReclaimed()
}

// entryFor is the read-only locked lookup shared by Start/ChannelFor.
func (m *sessionManager) entryFor(clientID domain.ClientID) (*sessionEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.backends[clientID]
	return entry, ok
}

// reapLoop runs reap every reapInterval until ShutdownAll closes stopped. A panicking pass is
// logged and the loop continues.
//
// Called only from NewSessionManager in a separate goroutine.
func (m *sessionManager) reapLoop() {
	ticker := time.NewTicker(m.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.reapOnce()
		case <-m.stopped:
			return
		}
	}
}

// reapOnce snapshots the current client id set, then for each checks poll-exit outside the lock
// (Poll never blocks) and removes terminated backends from the table, returning their ports. The
// snapshot tolerates entries being removed concurrently by Datapath finalization.
func (m *sessionManager) reapOnce() {
	defer func() {
		if r := recover(); r != nil {
			level.Info(m.logger).Log("msg", "reaper pass panicked, continuing", "recovered", r)
		}
	}()

	m.mu.Lock()
	ids := make([]domain.ClientID, 0, len(m.backends))
	for id := range m.backends {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		entry, ok := m.backends[id]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if _, exited := entry.handle.PollExit(); !exited {
			continue
		}

		m.mu.Lock()
		current, stillPresent := m.backends[id]
		reaped := stillPresent && current == entry
		if reaped {
			delete(m.backends, id)
			if _, hadLastSeen := m.lastSeen[id]; hadLastSeen {
				m.numClients--
			}
			delete(m.lastSeen, id)
			delete(m.graceSeconds, id)
			m.portPool.Release(entry.port)
		}
		m.mu.Unlock()
		if !reaped {
			continue
		}
		_ = entry.conn.Close()
		m.observeReaped()
		m.observeReclaimed()
		level.Info(m.logger).Log("msg", "reaped dead backend", "client_id", id, "session_id", entry.sessionID, "port", entry.port)
	}
}
