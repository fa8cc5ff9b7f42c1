package service

import (
	"fmt"
	"net"
	"sync"

	"github.com/FeckMell/clientproxier/interfaces"
)

// portPool implements interfaces.PortPool: bind-probe acquire with tail-rotation on failure,
// bounded to one pass over the range.
type portPool struct {
	mu   sync.Mutex
	free []int
}

// NewPortPool creates a PortPool covering [lo, hi). Panics if lo >= hi (a misconfigured range is a
// programmer error, caught at startup).
func NewPortPool(lo, hi int) interfaces.PortPool {
	if lo >= hi {
		panic(fmt.Sprintf("service.port_pool.go: invalid port range [%d, %d)", lo, hi))
	}
	free := make([]int, 0, hi-lo)
	for p := lo; p < hi; p++ {
		free = append(free, p)
	}
	return &portPool{free: free}
}

// Acquire scans the free list in insertion order, binding each candidate; the first bindable port
// is removed and returned. A candidate that fails to bind is rotated to the tail. The scan is
// bounded to exactly one pass: an unbounded rotate-and-retry loop would spin forever when every
// port in the range is held by foreign processes.
func (p *portPool) Acquire() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	passes := len(p.free)
	for i := 0; i < passes; i++ {
		port := p.free[0]
		p.free = p.free[1:]
		if bindable(port) {
			return port, nil
		}
		p.free = append(p.free, port)
	}
	return 0, fmt.Errorf("acquire port: %w", ErrPortExhausted)
}

// Release appends port to the tail of the free list.
func (p *portPool) Release(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, port)
}

// bindable reports whether port can be bound right now on loopback. The listener is closed
// immediately after the probe; the acquire-bind-close-reuse window is inherently racy, which is
// why the session manager spawns the backend immediately after acquiring a port rather than
// caching it; a collision surfaces as backend startup failure.
func bindable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
