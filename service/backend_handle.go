package service

import (
	"context"
	"sync"
	"time"

	"github.com/FeckMell/clientproxier/domain"
	"github.com/FeckMell/clientproxier/interfaces"
)

// backendHandle is the one-shot process future behind each session table entry, plus its four
// observer operations, built as a lock-guarded one-shot slot. SetResult is idempotent by
// construction (the done channel can only be closed once); a second SetResult call is a no-op.
type backendHandle struct {
	mu       sync.Mutex
	done     chan struct{}
	resolved bool
	proc     interfaces.SpawnedProcess // nil when resolved to the failure sentinel
	failed   bool
}

func newBackendHandle() *backendHandle {
	return &backendHandle{done: make(chan struct{})}
}

// SetResult resolves the future to proc (a live process) or, when proc is nil, to the failure
// sentinel. Idempotent: only the first call has any effect.
//
// Called from service.SessionManager.Start on spawn outcome, and from FinalizeDatapath to
// resolve a future that never otherwise would (unblocking any goroutine parked in WaitReady).
func (b *backendHandle) SetResult(proc interfaces.SpawnedProcess) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resolved {
		return
	}
	b.resolved = true
	b.proc = proc
	b.failed = proc == nil
	close(b.done)
}

// Ready reports whether the future has resolved (to either outcome), without blocking.
func (b *backendHandle) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolved
}

// State returns the coarse domain.BackendState snapshot for Lookup.
func (b *backendHandle) State() domain.BackendState {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case !b.resolved:
		return domain.BackendUnset
	case b.failed:
		return domain.BackendFailed
	default:
		return domain.BackendRunning
	}
}

// WaitReady blocks until the future resolves, ctx is cancelled, or timeout elapses, whichever is
// first.
//
// Returns: nil if resolved to a live process; ErrStartupFailed if resolved to the failure
// sentinel; ctx.Err() or context.DeadlineExceeded if the wait itself timed out before resolution.
func (b *backendHandle) WaitReady(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.done:
		b.mu.Lock()
		failed := b.failed
		b.mu.Unlock()
		if failed {
			return ErrStartupFailed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

// PollExit returns the process exit code and true if the underlying process has terminated (or
// the future resolved to failure without ever spawning one), or (0, false) if it is still running
// or the future hasn't resolved yet.
//
// Called by the reaper on every live Backend each scan.
func (b *backendHandle) PollExit() (int, bool) {
	b.mu.Lock()
	resolved, failed, proc := b.resolved, b.failed, b.proc
	b.mu.Unlock()
	if !resolved {
		return 0, false
	}
	if failed {
		return -1, true
	}
	return proc.Poll()
}

// ForceKill best-effort terminates the underlying process; a no-op if the future never resolved
// to a live process (nothing to kill) or already resolved to failure.
func (b *backendHandle) ForceKill() error {
	b.mu.Lock()
	resolved, failed, proc := b.resolved, b.failed, b.proc
	b.mu.Unlock()
	if !resolved || failed || proc == nil {
		return nil
	}
	return proc.Kill()
}
