package proxy

import (
	"context"
	"fmt"
	"testing"

	"github.com/FeckMell/clientproxier/domain"
	"github.com/FeckMell/clientproxier/interfaces/mock"
	"github.com/FeckMell/clientproxier/service"
	"github.com/FeckMell/clientproxier/wireproto"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

func dialWithClientID(t *testing.T, conn *grpc.ClientConn, clientID, fullMethod string) (grpc.ClientStream, context.Context) {
	t.Helper()
	ctx := metadata.AppendToOutgoingContext(context.Background(), "client_id", clientID)
	stream, err := conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, fullMethod)
	require.NoError(t, err)
	return stream, ctx
}

func TestControlServicer_ClusterInfoPing_AnsweredLocallyWithoutChannel(t *testing.T) {
	sm := &mock.SessionManagerMock{
		ChannelForFunc: func(ctx context.Context, clientID domain.ClientID) (*grpc.ClientConn, error) {
			t.Fatal("ping must never resolve a channel")
			return nil, nil
		},
		HasChannelFunc: func(domain.ClientID) bool { return false },
	}
	ctrl := NewControlServicer(sm, &mock.KVStoreMock{}, log.NewNopLogger())
	conn := startServicer(t, ctrl.Handle)

	stream, _ := dialWithClientID(t, conn, "c1", "/ray.rpc.RayletDriverService/ClusterInfo")
	req := wireproto.Build().WithVarint(wireproto.ClusterInfoType, wireproto.ClusterInfoTypePing).Marshal()
	require.NoError(t, stream.SendMsg(mustEmpty(t, req)))
	require.NoError(t, stream.CloseSend())

	var resp emptypb.Empty
	require.NoError(t, stream.RecvMsg(&resp))
	raw, err := marshalEmpty(&resp)
	require.NoError(t, err)
	msg, err := wireproto.Parse(raw)
	require.NoError(t, err)
	json, ok := msg.GetString(wireproto.ClusterInfoJSON)
	require.True(t, ok)
	assert.Equal(t, "{}", json)
}

func TestControlServicer_KVFallback_WhenNoChannel(t *testing.T) {
	var putCalled bool
	kv := &mock.KVStoreMock{
		PutFunc: func(ctx context.Context, key, value []byte, overwrite bool) (bool, error) {
			putCalled = true
			assert.Equal(t, []byte("k"), key)
			assert.Equal(t, []byte("v"), value)
			return false, nil
		},
	}
	sm := &mock.SessionManagerMock{
		HasChannelFunc: func(domain.ClientID) bool { return false },
		ChannelForFunc: func(ctx context.Context, clientID domain.ClientID) (*grpc.ClientConn, error) {
			t.Fatal("pre-session KV fallback must not allocate a backend")
			return nil, nil
		},
	}
	ctrl := NewControlServicer(sm, kv, log.NewNopLogger())
	conn := startServicer(t, ctrl.Handle)

	stream, _ := dialWithClientID(t, conn, "c1", "/ray.rpc.RayletDriverService/KVPut")
	req := wireproto.Build().WithBytes(wireproto.KVKey, []byte("k")).WithBytes(wireproto.KVValue, []byte("v")).Marshal()
	require.NoError(t, stream.SendMsg(mustEmpty(t, req)))
	require.NoError(t, stream.CloseSend())

	var resp emptypb.Empty
	require.NoError(t, stream.RecvMsg(&resp))
	assert.True(t, putCalled)
}

func TestControlServicer_KVNotFallback_WhenChannelExists(t *testing.T) {
	backendConn := startBidiBackend(t, "/ray.rpc.RayletDriverService/KVGet", func(stream grpc.ServerStream) error {
		var req emptypb.Empty
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		resp := wireproto.Build().WithBytes(wireproto.KVValue, []byte("from-backend")).Marshal()
		respMsg, err := rawToEmpty(resp)
		if err != nil {
			return err
		}
		return stream.SendMsg(respMsg)
	})

	sm := &mock.SessionManagerMock{
		HasChannelFunc: func(domain.ClientID) bool { return true },
		ChannelForFunc: func(ctx context.Context, clientID domain.ClientID) (*grpc.ClientConn, error) {
			return backendConn, nil
		},
	}
	kv := &mock.KVStoreMock{
		GetFunc: func(ctx context.Context, key []byte) ([]byte, bool, error) {
			t.Fatal("must forward to backend once a channel exists, not fall back to local KV")
			return nil, false, nil
		},
	}
	ctrl := NewControlServicer(sm, kv, log.NewNopLogger())
	conn := startServicer(t, ctrl.Handle)

	stream, _ := dialWithClientID(t, conn, "c1", "/ray.rpc.RayletDriverService/KVGet")
	req := wireproto.Build().WithBytes(wireproto.KVKey, []byte("k")).Marshal()
	require.NoError(t, stream.SendMsg(mustEmpty(t, req)))
	require.NoError(t, stream.CloseSend())

	var resp emptypb.Empty
	require.NoError(t, stream.RecvMsg(&resp))
	raw, err := marshalEmpty(&resp)
	require.NoError(t, err)
	msg, err := wireproto.Parse(raw)
	require.NoError(t, err)
	value, ok := msg.GetBytes(wireproto.KVValue)
	require.True(t, ok)
	assert.Equal(t, "from-backend", string(value))
}

func TestControlServicer_UnknownClientID_NotFound(t *testing.T) {
	sm := &mock.SessionManagerMock{
		ChannelForFunc: func(ctx context.Context, clientID domain.ClientID) (*grpc.ClientConn, error) {
			return nil, fmt.Errorf("channel_for %q: %w", clientID, service.ErrClientNotFound)
		},
	}
	ctrl := NewControlServicer(sm, &mock.KVStoreMock{}, log.NewNopLogger())
	// Wrapped in the same error interceptor cmd/main installs, which maps ErrClientNotFound.
	interceptor := service.StreamErrorInterceptor(log.NewNopLogger())
	conn := startServicer(t, func(srv any, stream grpc.ServerStream) error {
		return interceptor(srv, stream, &grpc.StreamServerInfo{FullMethod: "/ray.rpc.RayletDriverService/Schedule"}, ctrl.Handle)
	})

	stream, _ := dialWithClientID(t, conn, "ghost", "/ray.rpc.RayletDriverService/Schedule")
	require.NoError(t, stream.SendMsg(mustEmpty(t, nil)))
	require.NoError(t, stream.CloseSend())

	var resp emptypb.Empty
	err := stream.RecvMsg(&resp)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}

func TestControlServicer_MissingClientID_InvalidArgument(t *testing.T) {
	ctrl := NewControlServicer(&mock.SessionManagerMock{}, &mock.KVStoreMock{}, log.NewNopLogger())
	conn := startServicer(t, ctrl.Handle)

	ctx := context.Background()
	stream, err := conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, "/ray.rpc.RayletDriverService/Schedule")
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(mustEmpty(t, nil)))
	require.NoError(t, stream.CloseSend())

	var resp emptypb.Empty
	err = stream.RecvMsg(&resp)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func mustEmpty(t *testing.T, raw []byte) *emptypb.Empty {
	t.Helper()
	msg, err := rawToEmpty(raw)
	require.NoError(t, err)
	return msg
}
