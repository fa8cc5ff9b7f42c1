package wireproto

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for the handful of message shapes the proxier must read or rewrite, documented
// here as the wire contract the session and control servicers were built against. The backend and
// client drivers must be built against the same numbers.

// DataRequest / DataResponse oneof "type": at most one of these is present per message.
const (
	DataInit              protowire.Number = 1 // DataRequest.init (InitRequest) / DataResponse.init (InitResponse)
	DataConnectionInfo    protowire.Number = 2 // DataResponse.connection_info (ConnectionInfoResponse)
	DataConnectionCleanup protowire.Number = 3 // DataResponse.connection_cleanup (ConnectionCleanupResponse)
)

// InitRequest fields (nested inside DataRequest.init).
const (
	InitJobConfig            protowire.Number = 1 // bytes, opaque
	InitRayInitKwargs        protowire.Number = 2 // bytes, opaque
	InitReconnectGracePeriod protowire.Number = 3 // varint, seconds
	InitSerializedRuntimeEnv protowire.Number = 4 // bytes, opaque (empty => default context)
	InitRuntimeEnvConfig     protowire.Number = 5 // bytes, opaque
)

// InitResponse fields (nested inside DataResponse.init).
const (
	InitOK  protowire.Number = 1 // bool
	InitMsg protowire.Number = 2 // string
)

// ConnectionInfoResponse fields (nested inside DataResponse.connection_info).
const (
	ConnectionInfoNumClients protowire.Number = 1 // varint
)

// ClusterInfoRequest / ClusterInfoResponse fields.
const (
	ClusterInfoType protowire.Number = 1 // varint enum, see ClusterInfoType* constants
	ClusterInfoJSON protowire.Number = 1 // string, response-side reuse of field 1 in the reply message
)

// ClusterInfoType enum values.
const (
	ClusterInfoTypeUnspecified uint64 = 0
	ClusterInfoTypePing        uint64 = 1
)

// KV request/response field numbers. All five ops share the same (key, value, overwrite) /
// (prefix) / (uri, expiration_s) shapes.
const (
	KVKey           protowire.Number = 1 // bytes
	KVValue         protowire.Number = 2 // bytes
	KVOverwrite     protowire.Number = 3 // bool
	KVAlreadyExists protowire.Number = 1 // bool, KVPutResponse
	KVExistsField   protowire.Number = 1 // bool, KVExistsResponse
	KVPrefix        protowire.Number = 1 // bytes, KVListRequest
	KVKeys          protowire.Number = 1 // repeated bytes, KVListResponse
	KVURI           protowire.Number = 1 // string, PinRuntimeEnvURIRequest
	KVExpirationS   protowire.Number = 2 // varint (int32), PinRuntimeEnvURIRequest
)

// Runtime-env agent HTTP protocol fields.
const (
	RuntimeEnvSerializedEnv          protowire.Number = 1 // string
	RuntimeEnvConfig                 protowire.Number = 2 // bytes
	RuntimeEnvJobID                  protowire.Number = 3 // bytes
	RuntimeEnvSourceProcess          protowire.Number = 4 // string
	RuntimeEnvReplyStatus            protowire.Number = 1 // varint enum, see RuntimeEnvStatus*
	RuntimeEnvReplySerializedContext protowire.Number = 2 // string
	RuntimeEnvReplyErrorMessage      protowire.Number = 3 // string
)

// RuntimeEnvStatus enum values.
const (
	RuntimeEnvStatusOK     uint64 = 0
	RuntimeEnvStatusFailed uint64 = 1
)
