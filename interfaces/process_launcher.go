package interfaces

import "context"

//go:generate moq -stub -out mock/process_launcher.go -pkg mock . ProcessLauncher

// SpawnSpec describes one backend child process to launch.
type SpawnSpec struct {
	// Port is the loopback port the backend must listen on.
	Port int
	// RuntimeEnvContext is the opaque string produced by the runtime-env provisioner (or the
	// default empty context), handed to the spawned backend at launch.
	RuntimeEnvContext string
	// JobID is the runtime-env agent job id used for this launch ("ray_client_server_<port>"),
	// carried through for log correlation even though the agent call itself already happened.
	JobID string
	// StdoutPath, StderrPath are the per-backend log file paths, named with the allocated port.
	StdoutPath string
	StderrPath string
}

// SpawnedProcess is the live handle to a child process, returned by ProcessLauncher.Launch: a
// process plus the ability to poll its command line for the shim->binary transition.
type SpawnedProcess interface {
	// Pid returns the OS process id.
	Pid() int
	// CommandLine returns the process's current command line (as observed via OS introspection),
	// for readiness verification. Returns ("", false) when introspection isn't available on this
	// platform or the process has already exited; either case means "skip/stop polling".
	CommandLine() (string, bool)
	// Poll returns (exitCode, true) if the process has already terminated, or (0, false) if it is
	// still running. Never blocks.
	Poll() (int, bool)
	// Kill sends a termination signal; a no-op (not an error) if the process already exited.
	Kill() error
}

// ProcessLauncher spawns backend child processes and, optionally, installs a parent-death signal
// so children don't outlive a crashed proxier (the fate-sharing enrichment; best-effort, platform
// dependent).
//
// Used by service.SessionManager.Start when a new session's backend is launched.
type ProcessLauncher interface {
	// Launch starts the backend command for spec and returns a handle to observe it.
	//
	// Returns: (process, nil) once the OS has forked/exec'd; (nil, err) if the spawn itself failed
	// (binary missing, permission denied, log file open failure etc; surfaces as StartupFailed).
	//
	// Called from service.SessionManager.Start.
	Launch(ctx context.Context, spec SpawnSpec) (SpawnedProcess, error)
}
