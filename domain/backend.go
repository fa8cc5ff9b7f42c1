package domain

// BackendState is a coarse snapshot of a Backend's process-handle lifecycle, for lookups and
// tests; it does not expose the underlying future or channel, only enough to answer "is this
// session usable yet".
type BackendState int

const (
	// BackendUnset: the process future has not resolved yet (spawn in flight, or not started).
	BackendUnset BackendState = iota
	// BackendRunning: the process future resolved to a live process.
	BackendRunning
	// BackendFailed: the process future resolved to the failure sentinel (spawn error, shim never
	// matched before exit, or the backend was torn down by Datapath finalization/the reaper).
	BackendFailed
)

// BackendInfo is a read-only snapshot of one Backend, returned by SessionManager.Lookup. It never
// aliases the live mutable state (port/process/channel invariants in the data model are owned and
// enforced inside the session manager and the backend handle, not here).
type BackendInfo struct {
	ClientID ClientID
	Port     int
	State    BackendState
}
