package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestGetClientID_Present(t *testing.T) {
	md := metadata.Pairs(HeaderClientID, "c1")
	id, ok := GetClientID(md)
	require.True(t, ok)
	assert.Equal(t, "c1", id)
}

func TestGetClientID_Absent(t *testing.T) {
	md := metadata.Pairs("other", "v")
	_, ok := GetClientID(md)
	assert.False(t, ok)
}

func TestGetClientID_EmptyValue(t *testing.T) {
	md := metadata.Pairs(HeaderClientID, "")
	_, ok := GetClientID(md)
	assert.False(t, ok)
}

func TestGetClientID_MultipleValuesTakesFirst(t *testing.T) {
	md := metadata.MD{}
	md.Append(HeaderClientID, "first")
	md.Append(HeaderClientID, "second")
	id, ok := GetClientID(md)
	require.True(t, ok)
	assert.Equal(t, "first", id)
}

func TestGetClientID_NilMD(t *testing.T) {
	_, ok := GetClientID(nil)
	assert.False(t, ok)
}

func TestGetReconnecting(t *testing.T) {
	tests := []struct {
		name string
		md   metadata.MD
		want bool
	}{
		{name: "true", md: metadata.Pairs(HeaderReconnecting, "true"), want: true},
		{name: "True_mixed_case", md: metadata.Pairs(HeaderReconnecting, "True"), want: true},
		{name: "false", md: metadata.Pairs(HeaderReconnecting, "false"), want: false},
		{name: "absent_means_new_session", md: metadata.Pairs("other", "v"), want: false},
		{name: "nil_md", md: nil, want: false},
		{name: "garbage_value", md: metadata.Pairs(HeaderReconnecting, "yes"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetReconnecting(tt.md))
		})
	}
}

func TestGetHeaderValue(t *testing.T) {
	tests := []struct {
		name    string
		md      metadata.MD
		key     string
		wantVal string
		wantOK  bool
	}{
		{
			name:    "nil_md",
			md:      nil,
			key:     "k",
			wantVal: "",
			wantOK:  false,
		},
		{
			name:    "key_absent",
			md:      metadata.Pairs("other", "v"),
			key:     "x",
			wantVal: "",
			wantOK:  false,
		},
		{
			name:    "key_present",
			md:      metadata.Pairs("my-key", "my-value"),
			key:     "my-key",
			wantVal: "my-value",
			wantOK:  true,
		},
		{
			name:    "empty_value",
			md:      metadata.Pairs("k", ""),
			key:     "k",
			wantVal: "",
			wantOK:  false,
		},
		{
			name:    "multiple_values_takes_first",
			md:      metadata.MD{},
			key:     "k",
			wantVal: "first",
			wantOK:  true,
		},
		{
			name:    "key_lowercased",
			md:      metadata.Pairs("Client_Id", "c9"),
			key:     "client_id",
			wantVal: "c9",
			wantOK:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := tt.md
			if tt.name == "multiple_values_takes_first" {
				md = metadata.MD{}
				md.Append("k", "first")
				md.Append("k", "second")
			}
			val, ok := GetHeaderValue(md, tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantVal, val)
		})
	}
}
