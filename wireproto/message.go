// Package wireproto provides a minimal, schema-agnostic protobuf wire-format reader/writer.
//
// The three services this proxier forwards are defined by an external schema this repository does
// not have generated stubs for: the backend server binary owns the protocol. For the large
// majority of RPCs the proxier never needs to interpret the message at all: it only needs to
// forward bytes byte-identically, which the control and log servicers do with emptypb.Empty
// (unknown fields round-trip unchanged through an Empty value).
//
// A handful of spots do need to read or rewrite specific fields (the Datapath oneof variant tag,
// the init message's job config and grace period, the connection_info response's num_clients, the
// pre-session KV requests, the cluster-info ping). Hand-writing
// full protoc-gen-go output for those without running protoc is impractical and fragile; instead
// this package parses a message into an ordered list of top-level (field number, wire type, raw
// value bytes) tuples, offers typed getters/setters over that list, and re-serializes it
// preserving every field this package doesn't understand. That keeps forwarding byte-identical for
// anything not explicitly touched, which is the same guarantee emptypb.Empty gives the fully
// generic RPCs, while still letting the session and control servicers act on the few fields the
// protocol requires.
package wireproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded top-level field: its number, wire type, and raw encoded value bytes
// (length-delimited payload without the length prefix for Bytes fields; the raw varint/fixed value
// otherwise).
type Field struct {
	Number protowire.Number
	Type   protowire.Type
	Raw    []byte
}

// Message is an ordered list of top-level fields, preserving encounter order (and duplicates,
// consistent with protobuf's repeated-field and last-one-wins scalar semantics).
type Message []Field

// Parse decodes data into a Message. It does not recurse into length-delimited submessages;
// callers that need a nested field call Parse again on the Bytes value returned by GetBytes.
func Parse(data []byte) (Message, error) {
	var msg Message
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("wireproto: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		var raw []byte
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("wireproto: invalid varint: %w", protowire.ParseError(n))
			}
			raw = protowire.AppendVarint(nil, v)
			data = data[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return nil, fmt.Errorf("wireproto: invalid fixed32: %w", protowire.ParseError(n))
			}
			raw = protowire.AppendFixed32(nil, v)
			data = data[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, fmt.Errorf("wireproto: invalid fixed64: %w", protowire.ParseError(n))
			}
			raw = protowire.AppendFixed64(nil, v)
			data = data[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("wireproto: invalid bytes: %w", protowire.ParseError(n))
			}
			raw = append([]byte(nil), v...)
			data = data[n:]
		default:
			return nil, fmt.Errorf("wireproto: unsupported wire type %v for field %d", typ, num)
		}
		msg = append(msg, Field{Number: num, Type: typ, Raw: raw})
	}
	return msg, nil
}

// Marshal re-serializes every field in order: tag followed by the raw value, re-wrapped with its
// length prefix for Bytes fields.
func (m Message) Marshal() []byte {
	var out []byte
	for _, f := range m {
		out = protowire.AppendTag(out, f.Number, f.Type)
		switch f.Type {
		case protowire.BytesType:
			out = protowire.AppendBytes(out, f.Raw)
		default:
			out = append(out, f.Raw...)
		}
	}
	return out
}

// which returns the index of the last field matching num, or -1.
func (m Message) which(num protowire.Number) int {
	idx := -1
	for i, f := range m {
		if f.Number == num {
			idx = i
		}
	}
	return idx
}

// GetVarint returns the last varint-typed field numbered num.
func (m Message) GetVarint(num protowire.Number) (uint64, bool) {
	i := m.which(num)
	if i < 0 || m[i].Type != protowire.VarintType {
		return 0, false
	}
	v, _ := protowire.ConsumeVarint(m[i].Raw)
	return v, true
}

// GetBool returns the last varint-typed field numbered num, interpreted as a protobuf bool.
func (m Message) GetBool(num protowire.Number) (bool, bool) {
	v, ok := m.GetVarint(num)
	return v != 0, ok
}

// GetBytes returns the raw bytes of the last bytes-typed field numbered num (no copy beyond
// what Parse already made).
func (m Message) GetBytes(num protowire.Number) ([]byte, bool) {
	i := m.which(num)
	if i < 0 || m[i].Type != protowire.BytesType {
		return nil, false
	}
	return m[i].Raw, true
}

// GetAllBytes returns every bytes-typed field numbered num, in encounter order (for repeated
// string/bytes fields such as a KV listing's keys).
func (m Message) GetAllBytes(num protowire.Number) [][]byte {
	var out [][]byte
	for _, f := range m {
		if f.Number == num && f.Type == protowire.BytesType {
			out = append(out, f.Raw)
		}
	}
	return out
}

// GetString returns the last bytes-typed field numbered num, decoded as a UTF-8 string.
func (m Message) GetString(num protowire.Number) (string, bool) {
	b, ok := m.GetBytes(num)
	if !ok {
		return "", false
	}
	return string(b), ok
}

// Which finds the first field number (searched in the order given) present in m: the
// "one-of" detector: for a well-formed oneof exactly one of these will be present, but this
// returns the first match deterministically if more than one is.
func (m Message) Which(candidates ...protowire.Number) (protowire.Number, bool) {
	for _, c := range candidates {
		if m.which(c) >= 0 {
			return c, true
		}
	}
	return 0, false
}

// WithVarint returns a copy of m with field num set to v (varint wire type), replacing an
// existing occurrence in place or appending if absent.
func (m Message) WithVarint(num protowire.Number, v uint64) Message {
	return m.with(num, protowire.VarintType, protowire.AppendVarint(nil, v))
}

// WithBool is WithVarint for a boolean field.
func (m Message) WithBool(num protowire.Number, v bool) Message {
	var i uint64
	if v {
		i = 1
	}
	return m.WithVarint(num, i)
}

// WithBytes returns a copy of m with field num set to v (bytes wire type), replacing an existing
// occurrence in place or appending if absent.
func (m Message) WithBytes(num protowire.Number, v []byte) Message {
	return m.with(num, protowire.BytesType, append([]byte(nil), v...))
}

// WithString is WithBytes for a string field.
func (m Message) WithString(num protowire.Number, v string) Message {
	return m.WithBytes(num, []byte(v))
}

func (m Message) with(num protowire.Number, typ protowire.Type, raw []byte) Message {
	out := make(Message, len(m))
	copy(out, m)
	i := out.which(num)
	if i >= 0 {
		out[i] = Field{Number: num, Type: typ, Raw: raw}
		return out
	}
	return append(out, Field{Number: num, Type: typ, Raw: raw})
}

// Build constructs a fresh Message from scratch, for locally-answered responses (a KV response, a
// Ping reply, a Datapath init-failure response) that don't start from an existing wire buffer.
func Build() Message {
	return nil
}
