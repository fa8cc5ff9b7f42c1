package interfaces

import "context"

//go:generate moq -stub -out mock/runtime_env_provisioner.go -pkg mock . RuntimeEnvProvisioner

// RuntimeEnvProvisioner provisions runtime environments: given a serialized description, performs
// an HTTP call with bounded exponential-backoff retry to obtain a context string passed to the
// spawned backend.
type RuntimeEnvProvisioner interface {
	// GetOrCreateRuntimeEnv POSTs serializedEnv/envConfig for jobID and returns the backend's
	// runtime-env context.
	//
	// Returns: (context, nil) on an OK response; ("", err) wrapping ErrAgentFailed on a well-formed
	// FAILED response (no retry), or ErrAgentUnreachable once the retry budget (5 additional
	// attempts, 0.5s/1s/2s/4s/8s) is exhausted, each attempt having failed at the transport level
	// or with a non-200 HTTP status.
	//
	// Called from service.SessionManager.Start when the Datapath init message carries a non-empty
	// serialized runtime environment.
	GetOrCreateRuntimeEnv(ctx context.Context, serializedEnv, envConfig []byte, jobID string) (string, error)
}
