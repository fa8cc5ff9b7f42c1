package proxy

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// bidiSvcServer is the handler-type interface grpc.ServiceDesc requires for a single bidi method.
type bidiSvcServer interface {
	Method(grpc.ServerStream) error
}

type bidiBackendImpl struct {
	handler func(grpc.ServerStream) error
}

func (b *bidiBackendImpl) Method(stream grpc.ServerStream) error {
	return b.handler(stream)
}

func bidiBackendStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(bidiSvcServer).Method(stream)
}

// startBidiBackend starts a real gRPC server serving a single bidi method at fullMethod (e.g.
// "/ray.rpc.RayletDriverService/ClusterInfo"), standing in for a spawned backend.
func startBidiBackend(t *testing.T, fullMethod string, handler func(grpc.ServerStream) error) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	i := strings.LastIndexByte(fullMethod, '/')
	serviceName, streamName := fullMethod[1:i], fullMethod[i+1:]
	srv := grpc.NewServer()
	impl := &bidiBackendImpl{handler: handler}
	sd := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*bidiSvcServer)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    streamName,
				Handler:       bidiBackendStreamHandler,
				ServerStreams: true,
				ClientStreams: true,
			},
		},
	}
	srv.RegisterService(sd, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// startServicer starts a gRPC server using handler as its UnknownServiceHandler and returns a
// dialed client connection to it.
func startServicer(t *testing.T, handler grpc.StreamHandler) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(handler))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
