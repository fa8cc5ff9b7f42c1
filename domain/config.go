package domain

import "time"

// Config is the fully-resolved, validated configuration for one proxier process. Built by
// cmd.LoadConfig from a YAML file plus a small set of environment variable overrides.
type Config struct {
	// ControlListenAddr, DataListenAddr, LogListenAddr are the three client-facing listen
	// addresses for the control, data and log servicers.
	ControlListenAddr string
	DataListenAddr    string
	LogListenAddr     string

	// PortLow, PortHigh bound the backend port pool [PortLow, PortHigh), default 23000-24000.
	PortLow  int
	PortHigh int

	// ClusterAddress is optional; when empty the session manager triggers cluster bootstrap
	// lazily on first access.
	ClusterAddress string

	// RuntimeEnvAgentAddress is required whenever a Datapath init message carries a non-empty
	// serialized runtime environment.
	RuntimeEnvAgentAddress string

	// KVRedisAddr, KVRedisUsername, KVRedisPassword configure the internal key-value store used
	// for the five pre-session fallback operations. KVRedisAddr is a redis:// URL (username and
	// password, when set, override any credentials embedded in the URL).
	KVRedisAddr     string
	KVRedisUsername string
	KVRedisPassword string

	// ThreadPoolSize is the stream-worker count given to each of the three servicers' gRPC servers.
	ThreadPoolSize int

	// ChannelTimeout (default 30s) bounds ChannelFor's wait for process readiness plus gRPC
	// channel readiness.
	ChannelTimeout time.Duration
	// ReapInterval (default 30s) is the reaper's scan period.
	ReapInterval time.Duration
	// LogStreamRetries / LogStreamRetryInterval: the log servicer's channel-lookup retry budget
	// (default 5 x 2s).
	LogStreamRetries       int
	LogStreamRetryInterval time.Duration

	// BackendLogDir is where per-backend stdout/stderr files are written, named with the
	// allocated port.
	BackendLogDir string
	// BackendCommand is the executable (and leading args) used to spawn a backend; the process
	// launcher appends --port, --runtime-env-context and --job-id.
	BackendCommand []string
	// BackendReadyTag is the substring the spawned command line must contain once the shim has
	// execed into the real backend binary.
	BackendReadyTag string
}
