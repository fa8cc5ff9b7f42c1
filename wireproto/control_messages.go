package wireproto

import "google.golang.org/protobuf/encoding/protowire"

// ClusterInfoRequestType extracts the ClusterInfoRequest.type field from raw request bytes.
//
// Returns: (type, true) if the field was present; (0, false) if absent (treated as
// ClusterInfoTypeUnspecified by callers, i.e. forward generically).
func ClusterInfoRequestType(raw []byte) (uint64, bool) {
	msg, err := Parse(raw)
	if err != nil {
		return 0, false
	}
	return msg.GetVarint(ClusterInfoType)
}

// BuildPingResponse constructs a ClusterInfoResponse with an empty-JSON body, answered locally
// without ever forwarding to a backend.
func BuildPingResponse() []byte {
	return Build().WithString(ClusterInfoJSON, "{}").Marshal()
}

// KVPutRequestFields extracts (key, value, overwrite) from a KVPutRequest.
func KVPutRequestFields(raw []byte) (key, value []byte, overwrite bool, err error) {
	msg, err := Parse(raw)
	if err != nil {
		return nil, nil, false, err
	}
	key, _ = msg.GetBytes(KVKey)
	value, _ = msg.GetBytes(KVValue)
	overwrite, _ = msg.GetBool(KVOverwrite)
	return key, value, overwrite, nil
}

// BuildKVPutResponse constructs a KVPutResponse.
func BuildKVPutResponse(alreadyExists bool) []byte {
	return Build().WithBool(KVAlreadyExists, alreadyExists).Marshal()
}

// KVKeyRequest extracts the single "key" field shared by KVGetRequest, KVDelRequest and
// KVExistsRequest.
func KVKeyRequest(raw []byte) ([]byte, error) {
	msg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	key, _ := msg.GetBytes(KVKey)
	return key, nil
}

// BuildKVGetResponse constructs a KVGetResponse.
func BuildKVGetResponse(value []byte) []byte {
	return Build().WithBytes(KVValue, value).Marshal()
}

// BuildKVExistsResponse constructs a KVExistsResponse.
func BuildKVExistsResponse(exists bool) []byte {
	return Build().WithBool(KVExistsField, exists).Marshal()
}

// KVListRequestPrefix extracts the "prefix" field from a KVListRequest.
func KVListRequestPrefix(raw []byte) ([]byte, error) {
	msg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	prefix, _ := msg.GetBytes(KVPrefix)
	return prefix, nil
}

// BuildKVListResponse constructs a KVListResponse with one repeated "keys" field per entry.
func BuildKVListResponse(keys [][]byte) []byte {
	msg := Build()
	for _, k := range keys {
		msg = append(msg, Field{Number: KVKeys, Type: protowire.BytesType, Raw: append([]byte(nil), k...)})
	}
	return msg.Marshal()
}

// PinRuntimeEnvURIRequestFields extracts (uri, expirationSeconds) from a PinRuntimeEnvURIRequest.
func PinRuntimeEnvURIRequestFields(raw []byte) (uri string, expirationSeconds int32, err error) {
	msg, err := Parse(raw)
	if err != nil {
		return "", 0, err
	}
	uri, _ = msg.GetString(KVURI)
	expiration, _ := msg.GetVarint(KVExpirationS)
	return uri, int32(expiration), nil
}
