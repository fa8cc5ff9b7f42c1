package interfaces

//go:generate moq -stub -out mock/port_pool.go -pkg mock . PortPool

// PortPool allocates and returns TCP ports from a fixed range. Binding, not
// just list membership, is authoritative: acquire probes a real bind before handing out a port,
// since the range is shared with the host.
//
// Used by service.SessionManager.Register to obtain a port for a new Backend, and by the reaper
// to return a dead Backend's port.
type PortPool interface {
	// Acquire scans the free list in insertion order, binding each candidate; the first bindable
	// port is removed from the free list and returned. A candidate that fails to bind (EADDRINUSE
	// or equivalent) is rotated to the tail and the scan continues for exactly one full pass.
	//
	// Returns: (port, nil) on success; (0, ErrPortExhausted) if a full pass yields no binder.
	//
	// Called from service.SessionManager.Register.
	Acquire() (int, error)

	// Release appends port to the tail of the free list. Releasing a port not currently held is a
	// caller error (the session manager only releases ports it previously acquired) but is not
	// itself validated here: the free list would simply gain a duplicate, which Acquire would
	// then offer twice; SessionManager is responsible for calling this exactly once per acquired port.
	//
	// Called from the reaper and from Datapath finalization cleanup.
	Release(port int)
}
