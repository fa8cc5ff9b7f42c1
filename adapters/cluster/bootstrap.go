// Package cluster implements interfaces.ClusterBootstrapper, the layer that produces a cluster
// address and per-node I/O paths. One-shot resolution: a sync.Once guards a cached result pair.
package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/FeckMell/clientproxier/interfaces"
)

// Static implements interfaces.ClusterBootstrapper for a pre-known cluster address; when none is
// provided, bootstrap is triggered on first access. The per-node log directory is derived from
// baseLogDir and cached after the first call, standing in for the real bootstrap layer's
// per-node I/O paths.
type Static struct {
	baseLogDir string

	once    sync.Once
	address string
	nodeDir string
	err     error
}

var _ interfaces.ClusterBootstrapper = (*Static)(nil)

// NewStatic builds a ClusterBootstrapper. address may be empty, in which case Address()
// synthesizes a loopback address on first call (the "bootstrap on first access" path) instead of
// failing; this repository has no real cluster-bootstrap binary to shell out to, and the spawned
// backend only needs an address string to pass through, not a live cluster.
func NewStatic(address, baseLogDir string) *Static {
	return &Static{address: address, baseLogDir: baseLogDir}
}

// Address returns the configured cluster address, bootstrapping a loopback placeholder on first
// call if none was supplied at construction.
func (s *Static) Address() (string, error) {
	s.once.Do(s.bootstrap)
	return s.address, s.err
}

// NodeLogDir returns the per-node directory backend stdout/stderr files should be written under,
// derived from the cluster address and created (if missing) on first call.
func (s *Static) NodeLogDir() (string, error) {
	s.once.Do(s.bootstrap)
	return s.nodeDir, s.err
}

func (s *Static) bootstrap() {
	if s.address == "" {
		s.address = "127.0.0.1:0"
	}
	dir := filepath.Join(s.baseLogDir, sanitizeAddress(s.address))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.err = fmt.Errorf("cluster: bootstrap node log dir %s: %w", dir, err)
		return
	}
	s.nodeDir = dir
}

// sanitizeAddress turns a cluster address into something usable as a single path segment.
func sanitizeAddress(address string) string {
	out := make([]rune, 0, len(address))
	for _, r := range address {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
