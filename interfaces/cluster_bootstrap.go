package interfaces

//go:generate moq -stub -out mock/cluster_bootstrap.go -pkg mock . ClusterBootstrapper

// ClusterBootstrapper is the cluster bootstrap layer: it produces a cluster address and per-node
// I/O paths. The session manager triggers it lazily on first access when no address was supplied
// at construction.
type ClusterBootstrapper interface {
	// Address returns the cluster address, bootstrapping the cluster on first call if one was not
	// already provided.
	Address() (string, error)

	// NodeLogDir returns the per-node directory backend stdout/stderr files should be written
	// under, derived from the cluster address and cached after the first call.
	NodeLogDir() (string, error)
}
