// Package proxy implements the three client-facing gRPC servicers: control, data and log. None of
// the three has generated protobuf stubs for the forwarded services (the backend binary owns the
// schema), so each is registered on its own grpc.Server via grpc.UnknownServiceHandler. The
// bidirectional byte-forwarding technique below uses *emptypb.Empty as the wire type on both
// legs, relying on protobuf-go's unknown-field preservation to round-trip bytes this package
// never parses; wireproto is layered on top only at the handful of points that require looking
// inside a message.
package proxy

import (
	"io"

	"github.com/FeckMell/clientproxier/service"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
)

// rawToEmpty wraps raw as an *emptypb.Empty by unmarshaling it: since Empty declares no fields,
// every byte becomes preserved "unknown field" data that a later proto.Marshal reproduces
// unchanged. This is how this package turns wireproto-built or wireproto-rewritten bytes back into
// something SendMsg/RecvMsg will carry.
func rawToEmpty(raw []byte) (*emptypb.Empty, error) {
	msg := &emptypb.Empty{}
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// marshalEmpty is the inverse of rawToEmpty: recovers the exact bytes a *emptypb.Empty was built
// or received from.
func marshalEmpty(msg *emptypb.Empty) ([]byte, error) {
	return proto.Marshal(msg)
}

// forwardClientToServer forwards messages from the backend (src) to the caller (dst), copying
// response headers on the first message. There is no retry or replay here: a failed user RPC
// surfaces to the caller as-is.
func forwardClientToServer(src grpc.ClientStream, dst grpc.ServerStream) <-chan error {
	ret := make(chan error, 1)
	go func() {
		f := &emptypb.Empty{}
		for i := 0; ; i++ {
			if err := src.RecvMsg(f); err != nil {
				ret <- err
				return
			}
			if i == 0 {
				if md, err := src.Header(); err == nil {
					_ = dst.SendHeader(md)
				}
			}
			if err := dst.SendMsg(f); err != nil {
				ret <- err
				return
			}
		}
	}()
	return ret
}

// forwardServerToClient forwards messages from the caller (src) to the backend (dst).
func forwardServerToClient(src grpc.ServerStream, dst grpc.ClientStream) <-chan error {
	ret := make(chan error, 1)
	go func() {
		f := &emptypb.Empty{}
		for {
			if err := src.RecvMsg(f); err != nil {
				ret <- err
				return
			}
			if err := dst.SendMsg(f); err != nil {
				ret <- err
				return
			}
		}
	}()
	return ret
}

// biForward runs both forwarding directions for the lifetime of the stream and reconciles their
// terminal errors: a clean end of caller input (io.EOF, or a strict cancellation per
// service.IsStrictCancellation) lets the backend leg finish normally via CloseSend; a clean end
// of backend output ends the RPC successfully. Anything else propagates.
func biForward(serverStream grpc.ServerStream, clientStream grpc.ClientStream) error {
	s2cErrCh := forwardServerToClient(serverStream, clientStream)
	c2sErrCh := forwardClientToServer(clientStream, serverStream)

	for i := 0; i < 2; i++ {
		select {
		case err := <-s2cErrCh:
			if err == io.EOF || service.IsStrictCancellation(err) {
				_ = clientStream.CloseSend()
				continue
			}
			return err
		case err := <-c2sErrCh:
			serverStream.SetTrailer(clientStream.Trailer())
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}
