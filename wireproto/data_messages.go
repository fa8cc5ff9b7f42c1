package wireproto

import "time"

// ParsedInit is the decoded content of a DataRequest's init variant that the Datapath
// new-session branch needs.
type ParsedInit struct {
	JobConfig            []byte
	RayInitKwargs        []byte
	ReconnectGracePeriod time.Duration
	SerializedRuntimeEnv []byte
	RuntimeEnvConfig     []byte
	raw                  Message // the nested InitRequest fields, for round-tripping unknown ones
}

// ParseDataRequestInit extracts the init variant from a DataRequest's raw bytes.
//
// Returns: (parsed, true, nil) if field DataInit is present; (ParsedInit{}, false, nil) if the
// message carries some other (unmodeled) oneof variant, in which case callers forward it
// generically; (_, _, err) if the bytes are not valid wire format.
func ParseDataRequestInit(raw []byte) (ParsedInit, bool, error) {
	outer, err := Parse(raw)
	if err != nil {
		return ParsedInit{}, false, err
	}
	initBytes, ok := outer.GetBytes(DataInit)
	if !ok {
		return ParsedInit{}, false, nil
	}
	inner, err := Parse(initBytes)
	if err != nil {
		return ParsedInit{}, false, err
	}
	jobConfig, _ := inner.GetBytes(InitJobConfig)
	kwargs, _ := inner.GetBytes(InitRayInitKwargs)
	grace, _ := inner.GetVarint(InitReconnectGracePeriod)
	serializedEnv, _ := inner.GetBytes(InitSerializedRuntimeEnv)
	envConfig, _ := inner.GetBytes(InitRuntimeEnvConfig)
	return ParsedInit{
		JobConfig:            jobConfig,
		RayInitKwargs:        kwargs,
		ReconnectGracePeriod: time.Duration(grace) * time.Second,
		SerializedRuntimeEnv: serializedEnv,
		RuntimeEnvConfig:     envConfig,
		raw:                  inner,
	}, true, nil
}

// RebuildDataRequestInit re-packs a (possibly mutated) job config into the init message,
// preserving the caller's ray_init_kwargs and reconnect_grace_period: unpack -> prep -> repack
// yields an init equal to the input modulo the job-config encoding.
func RebuildDataRequestInit(p ParsedInit, newJobConfig []byte) []byte {
	inner := p.raw
	if inner == nil {
		inner = Build()
	}
	inner = inner.WithBytes(InitJobConfig, newJobConfig)
	outer := Build().WithBytes(DataInit, inner.Marshal())
	return outer.Marshal()
}

// BuildInitFailureResponse constructs a DataResponse whose init variant carries ok=false and a
// diagnostic message, emitted as the single response on session-init failure.
func BuildInitFailureResponse(msg string) []byte {
	inner := Build().WithBool(InitOK, false).WithString(InitMsg, msg)
	outer := Build().WithBytes(DataInit, inner.Marshal())
	return outer.Marshal()
}

// DataResponseVariant identifies which of the three modeled DataResponse variants raw carries, if
// any.
func DataResponseVariant(raw []byte) (protowireNumber int64, ok bool) {
	msg, err := Parse(raw)
	if err != nil {
		return 0, false
	}
	num, found := msg.Which(DataInit, DataConnectionInfo, DataConnectionCleanup)
	if !found {
		return 0, false
	}
	return int64(num), true
}

// IsConnectionInfo reports whether raw's oneof variant is connection_info.
func IsConnectionInfo(raw []byte) bool {
	n, ok := DataResponseVariant(raw)
	return ok && n == int64(DataConnectionInfo)
}

// IsConnectionCleanup reports whether raw's oneof variant is connection_cleanup.
func IsConnectionCleanup(raw []byte) bool {
	n, ok := DataResponseVariant(raw)
	return ok && n == int64(DataConnectionCleanup)
}

// RewriteConnectionInfoNumClients rewrites the nested ConnectionInfoResponse.num_clients field to
// numClients, leaving every other field (including ones this package doesn't model) untouched.
// The backend only ever sees one client, so its own count must be replaced with the proxier's
// aggregate before the response reaches the caller.
func RewriteConnectionInfoNumClients(raw []byte, numClients int) ([]byte, error) {
	outer, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	innerBytes, ok := outer.GetBytes(DataConnectionInfo)
	if !ok {
		return raw, nil
	}
	inner, err := Parse(innerBytes)
	if err != nil {
		return nil, err
	}
	inner = inner.WithVarint(ConnectionInfoNumClients, uint64(numClients))
	outer = outer.WithBytes(DataConnectionInfo, inner.Marshal())
	return outer.Marshal(), nil
}
