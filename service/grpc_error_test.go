package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestGrpcStatusFromError_nil(t *testing.T) {
	assert.NoError(t, grpcStatusFromError(nil))
}

func TestGrpcStatusFromError_ErrClientNotFound(t *testing.T) {
	err := grpcStatusFromError(ErrClientNotFound)
	assert.Error(t, err)
	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.NotFound, s.Code())
}

func TestGrpcStatusFromError_ErrClientNotFoundWrapped(t *testing.T) {
	wrapped := errors.Join(ErrClientNotFound, errors.New("extra"))
	err := grpcStatusFromError(wrapped)
	assert.Error(t, err)
	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.NotFound, s.Code())
}

func TestGrpcStatusFromError_ErrChannelTimeout(t *testing.T) {
	err := grpcStatusFromError(ErrChannelTimeout)
	assert.Error(t, err)
	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.NotFound, s.Code())
}

func TestGrpcStatusFromError_ErrDuplicateClient(t *testing.T) {
	err := grpcStatusFromError(ErrDuplicateClient)
	assert.Error(t, err)
	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.AlreadyExists, s.Code())
}

func TestGrpcStatusFromError_sessionInitErrorsMapToUnavailable(t *testing.T) {
	for _, e := range []error{ErrPortExhausted, ErrStartupFailed, ErrAgentUnreachable, ErrAgentFailed} {
		err := grpcStatusFromError(errors.Join(e, errors.New("detail")))
		s, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.Unavailable, s.Code())
	}
}

func TestGrpcStatusFromError_arbitraryError(t *testing.T) {
	plain := errors.New("some backend failure")
	err := grpcStatusFromError(plain)
	assert.Error(t, err)
	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.Unavailable, s.Code())
	assert.Equal(t, msgBackendUnavailable, s.Message())
}

func TestGrpcStatusFromError_existingStatusPreserved(t *testing.T) {
	orig := status.Error(codes.Unauthenticated, "missing client_id")
	err := grpcStatusFromError(orig)
	assert.Error(t, err)
	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.Unauthenticated, s.Code())
	assert.Equal(t, "missing client_id", s.Message())
}

func TestGrpcStatusFromError_existingStatusInternalPreserved(t *testing.T) {
	orig := status.Error(codes.Internal, "missing grpc method in stream context")
	err := grpcStatusFromError(orig)
	assert.Error(t, err)
	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.Internal, s.Code())
}

func TestIsStrictCancellation(t *testing.T) {
	assert.False(t, isStrictCancellation(nil))
	assert.False(t, isStrictCancellation(io.EOF))
	assert.False(t, isStrictCancellation(errors.New("boom")))
	assert.True(t, isStrictCancellation(status.Error(codes.Canceled, "context canceled")))
	assert.False(t, isStrictCancellation(status.Error(codes.DeadlineExceeded, "timeout")))
}

// fakeServerStream is a minimal grpc.ServerStream for testing the interceptor.
type fakeServerStream struct {
	ctx context.Context
}

func (f *fakeServerStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeServerStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeServerStream) SetTrailer(metadata.MD)       {}
func (f *fakeServerStream) Context() context.Context     { return f.ctx }
func (f *fakeServerStream) SendMsg(interface{}) error    { return nil }
func (f *fakeServerStream) RecvMsg(interface{}) error    { return io.EOF }

func TestStreamErrorInterceptor_handlerReturnsNil(t *testing.T) {
	interceptor := StreamErrorInterceptor(log.NewNopLogger())
	ss := &fakeServerStream{ctx: context.Background()}
	info := &grpc.StreamServerInfo{FullMethod: "/svc/Method"}
	handler := func(srv interface{}, stream grpc.ServerStream) error {
		return nil
	}
	err := interceptor(nil, ss, info, handler)
	require.NoError(t, err)
}

func TestStreamErrorInterceptor_handlerReturnsErrClientNotFound(t *testing.T) {
	interceptor := StreamErrorInterceptor(log.NewNopLogger())
	ss := &fakeServerStream{ctx: context.Background()}
	info := &grpc.StreamServerInfo{FullMethod: "/svc/Method"}
	handler := func(srv interface{}, stream grpc.ServerStream) error {
		return ErrClientNotFound
	}
	err := interceptor(nil, ss, info, handler)
	require.Error(t, err)
	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, s.Code())
}

func TestStreamErrorInterceptor_handlerReturnsArbitraryError(t *testing.T) {
	interceptor := StreamErrorInterceptor(log.NewNopLogger())
	ss := &fakeServerStream{ctx: context.Background()}
	info := &grpc.StreamServerInfo{FullMethod: "/svc/Method"}
	handler := func(srv interface{}, stream grpc.ServerStream) error {
		return errors.New("backend dial failed")
	}
	err := interceptor(nil, ss, info, handler)
	require.Error(t, err)
	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unavailable, s.Code())
	assert.Equal(t, msgBackendUnavailable, s.Message())
}

func TestStreamErrorInterceptor_handlerReturnsExistingStatus(t *testing.T) {
	interceptor := StreamErrorInterceptor(log.NewNopLogger())
	ss := &fakeServerStream{ctx: context.Background()}
	info := &grpc.StreamServerInfo{FullMethod: "/svc/Method"}
	orig := status.Error(codes.Unimplemented, "method not routed")
	handler := func(srv interface{}, stream grpc.ServerStream) error {
		return orig
	}
	err := interceptor(nil, ss, info, handler)
	require.Error(t, err)
	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unimplemented, s.Code())
	assert.Equal(t, "method not routed", s.Message())
}
