package helpers

import (
	"strings"

	"google.golang.org/grpc/metadata"
)

// HeaderClientID is the gRPC metadata key carrying the opaque client identifier.
const HeaderClientID = "client_id"

// HeaderReconnecting is the gRPC metadata key (Datapath only) carrying a stringified boolean.
const HeaderReconnecting = "reconnecting"

// GetHeaderValue returns the first value of header key in metadata. Key is lowercased (gRPC canonicalizes keys).
//
// Parameters: md — incoming or outgoing metadata (nil allowed — returns ("", false)); key — header name (empty string gives ("", false)).
//
// Returns: (value, true) when there is a non-empty value; ("", false) when md is nil, key is missing or value is empty.
//
// Called from GetClientID, GetReconnecting and the proxy servicers when reading caller metadata.
func GetHeaderValue(md metadata.MD, key string) (string, bool) {
	if md == nil {
		return "", false
	}
	vals := md.Get(strings.ToLower(key))
	if len(vals) == 0 || vals[0] == "" {
		return "", false
	}
	return vals[0], true
}

// GetClientID returns the first value of the "client_id" header in metadata.
//
// Parameter md — request metadata (nil allowed — returns ("", false)).
//
// Returns: (client id, true) or ("", false) when missing or empty.
//
// Called from every proxy servicer before resolving a backend channel.
func GetClientID(md metadata.MD) (string, bool) {
	return GetHeaderValue(md, HeaderClientID)
}

// GetReconnecting returns whether the "reconnecting" header is present and parses as true.
//
// Parameter md — request metadata (nil allowed — returns false).
//
// Returns: true iff the header is present and its value is "true" (case-insensitive); false otherwise,
// including when the header is absent or unparsable (an absent header means "new session").
//
// Called from proxy/data.go when branching the Datapath protocol.
func GetReconnecting(md metadata.MD) bool {
	v, ok := GetHeaderValue(md, HeaderReconnecting)
	if !ok {
		return false
	}
	return strings.EqualFold(v, "true")
}
