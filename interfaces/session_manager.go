package interfaces

import (
	"context"
	"time"

	"github.com/FeckMell/clientproxier/domain"
	"google.golang.org/grpc"
)

//go:generate moq -stub -out mock/session_manager.go -pkg mock . SessionManager

// SessionManager is the core of the proxier: it owns the session table, the free port list (via
// PortPool) and the three auxiliary Datapath maps (last seen, reconnect grace seconds,
// num_clients), all guarded by one session mutex. It creates, starts, locates, reaps and
// force-kills backends, and answers channel-lookup queries.
//
// The Datapath-specific methods (Reconnect/BeginNew/RecordGracePeriod/NumClients/FinalizeDatapath)
// are part of this interface rather than living in the data servicer because they read and write
// the same mutex-guarded maps Register/Start do; the three maps must keep identical key sets
// outside a cleanup critical section, which only works if a single lock covers them all.
type SessionManager interface {
	// Register creates a fresh Backend for client_id: allocates a port via PortPool, opens (but
	// does not wait on) a gRPC channel to it, and adds it to the SessionTable.
	//
	// Returns: nil on success. ErrDuplicateClient if client_id is already registered.
	Register(clientID domain.ClientID) error

	// Start spawns the child process for a registered, process-unset client_id and waits for the
	// shim->binary readiness transition.
	//
	// Parameters: serializedEnv/envConfig — the init message's runtime-env description; empty
	// serializedEnv skips the provisioner entirely and uses the default empty context.
	// jobConfig — opaque bytes forwarded to the spawn spec; never interpreted.
	//
	// Returns: (true, nil) if the process is observed alive after the readiness wait; (false, nil)
	// if the process exited before matching (not itself an error; the caller decides whether that
	// counts as StartupFailed); (false, err) with ErrClientNotFound for an unregistered client id,
	// the provisioner's own error (ErrAgentUnreachable/ErrAgentFailed) returned as-is, a plain error
	// when no provisioner is configured, or ErrStartupFailed when the spawn fails. Resolves the
	// Backend's process future exactly once regardless of outcome.
	Start(ctx context.Context, clientID domain.ClientID, serializedEnv, envConfig, jobConfig []byte) (running bool, err error)

	// Lookup returns a read-only snapshot of the Backend for client_id, if any.
	Lookup(clientID domain.ClientID) (domain.BackendInfo, bool)

	// ChannelFor blocks until the Backend's process future resolves and the gRPC channel reaches
	// ready state, bounded by the configured channel timeout.
	//
	// Returns: (conn, nil) on success. ErrClientNotFound if no Backend is registered;
	// ErrStartupFailed if the process future resolved to failure; ErrChannelTimeout if the channel
	// did not become ready in time. Callers treat all three as "no channel".
	ChannelFor(ctx context.Context, clientID domain.ClientID) (*grpc.ClientConn, error)

	// HasChannel reports true iff a Backend exists for client_id and its process future is
	// resolved (to either outcome), i.e. a forward attempt would not block on spawn.
	HasChannel(clientID domain.ClientID) bool

	// ShutdownAll force-kills every registered Backend; called once from the atexit-equivalent
	// shutdown hook in cmd/main.
	ShutdownAll()

	// Reconnect is the Datapath reconnect branch: if client_id is not in the last-seen map,
	// returns ErrClientNotFound ("session already cleaned up") with no state change. Otherwise
	// stamps last-seen to startTime and returns the existing channel (ChannelFor's blocking
	// semantics apply).
	Reconnect(ctx context.Context, clientID domain.ClientID, startTime time.Time) (*grpc.ClientConn, error)

	// BeginNew is the Datapath new-session branch up to (but not including) reading the first
	// stream message: registers a fresh Backend, stamps last-seen to startTime and increments
	// num_clients, all atomically under the session mutex.
	//
	// Returns: ErrDuplicateClient if client_id is already registered (should not happen for a
	// genuinely new stream, but guards against a racing duplicate Datapath open).
	BeginNew(clientID domain.ClientID, startTime time.Time) error

	// RecordGracePeriod stores the reconnect grace period (seconds) declared in the first init
	// message, read back by FinalizeDatapath.
	RecordGracePeriod(clientID domain.ClientID, seconds uint32)

	// GracePeriod returns the previously recorded grace period for clientID, or (0, false) if none
	// was recorded (e.g. the reconnect path, which never calls RecordGracePeriod).
	GracePeriod(clientID domain.ClientID) (time.Duration, bool)

	// NumClients returns the proxier's current aggregate client count, used to rewrite the
	// connection_info response's num_clients field (the backend only ever sees one client).
	NumClients() int

	// FinalizeDatapath runs when a Datapath stream ends: if cleanupRequested is false and a grace
	// period was recorded for clientID, sleeps up to that many seconds (interruptible by proxier
	// shutdown). Then, under the mutex: no-op if clientID is no longer in the last-seen map, or if
	// its last-seen time is newer than startTime (a newer stream reconnected first).
	// Otherwise decrements num_clients, removes clientID from the last-seen and grace maps, and
	// resolves the Backend's process future to the failure sentinel, which both tears down the
	// session and unblocks any other servicer still waiting in ChannelFor.
	FinalizeDatapath(clientID domain.ClientID, startTime time.Time, cleanupRequested bool)
}
