package proxy

import (
	"context"
	"strings"

	"github.com/FeckMell/clientproxier/domain"
	"github.com/FeckMell/clientproxier/helpers"
	"github.com/FeckMell/clientproxier/interfaces"
	"github.com/FeckMell/clientproxier/wireproto"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

// kvFallbackMethods are the pre-session KV operations answered directly against the shared
// cluster KV when no backend channel exists yet for the caller's client id: the
// working-directory upload path needs KV before session init.
var kvFallbackMethods = map[string]bool{
	"KVPut":            true,
	"KVGet":            true,
	"KVDel":            true,
	"KVList":           true,
	"KVExists":         true,
	"PinRuntimeEnvURI": true,
}

// ControlServicer terminates the client-facing control service: every RPC it ever receives lands
// here via grpc.UnknownServiceHandler, since this repository has no generated stubs for the
// forwarded service. Generic byte-forwarding, with two special cases layered on top: the ping
// short-circuit and the pre-session KV fallback.
type ControlServicer struct {
	sm     interfaces.SessionManager
	kv     interfaces.KVStore
	logger log.Logger
}

// NewControlServicer constructs a ControlServicer. kv may be nil only if the deployment never
// expects pre-session KV traffic; cmd/main always supplies a real one.
func NewControlServicer(sm interfaces.SessionManager, kv interfaces.KVStore, logger log.Logger) *ControlServicer {
	return &ControlServicer{sm: sm, kv: kv, logger: logger}
}

// Handle is the grpc.StreamHandler registered as this server's UnknownServiceHandler.
func (c *ControlServicer) Handle(_ any, stream grpc.ServerStream) error {
	fullMethod, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "control servicer: no method on stream")
	}
	method := lastSegment(fullMethod)

	md, _ := metadata.FromIncomingContext(stream.Context())
	clientID, ok := helpers.GetClientID(md)
	if !ok {
		return status.Error(codes.InvalidArgument, "missing client_id")
	}
	cid := domain.ClientID(clientID)

	req := &emptypb.Empty{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	raw, err := marshalEmpty(req)
	if err != nil {
		return err
	}

	if method == "ClusterInfo" {
		if t, ok := wireproto.ClusterInfoRequestType(raw); ok && t == wireproto.ClusterInfoTypePing {
			level.Debug(c.logger).Log("msg", "answering ClusterInfo ping locally", "client_id", clientID)
			resp, err := rawToEmpty(wireproto.BuildPingResponse())
			if err != nil {
				return err
			}
			return stream.SendMsg(resp)
		}
		return c.forwardWithFirstMessage(stream, cid, fullMethod, md, req)
	}

	if kvFallbackMethods[method] && !c.sm.HasChannel(cid) {
		level.Debug(c.logger).Log("msg", "answering pre-session KV op directly", "method", method, "client_id", clientID)
		return c.handleKVFallback(stream, method, raw)
	}

	return c.forwardWithFirstMessage(stream, cid, fullMethod, md, req)
}

// forwardWithFirstMessage resolves a backend channel and forwards the stream this servicer has
// already consumed one message of, reusing the bidirectional forwarding in forward.go for every
// message after the first. Unknown client id surfaces as NotFound via
// service.grpcStatusFromError, mapping ErrClientNotFound/ErrChannelTimeout through the chained
// stream interceptor cmd/main installs.
func (c *ControlServicer) forwardWithFirstMessage(stream grpc.ServerStream, cid domain.ClientID, fullMethod string, inMD metadata.MD, first *emptypb.Empty) error {
	conn, err := c.sm.ChannelFor(stream.Context(), cid)
	if err != nil {
		return err
	}

	outCtx, cancel := context.WithCancel(metadata.NewOutgoingContext(stream.Context(), inMD))
	defer cancel()
	clientStream, err := conn.NewStream(outCtx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, fullMethod)
	if err != nil {
		return err
	}
	if err := clientStream.SendMsg(first); err != nil {
		return err
	}

	return biForward(stream, clientStream)
}

// handleKVFallback answers one of the five pre-session KV RPCs (plus PinRuntimeEnvURI) directly
// against the shared cluster KV store, without ever touching SessionManager: this path must not
// allocate a backend.
func (c *ControlServicer) handleKVFallback(stream grpc.ServerStream, method string, raw []byte) error {
	ctx := stream.Context()
	var resp []byte

	switch method {
	case "KVPut":
		key, value, overwrite, err := wireproto.KVPutRequestFields(raw)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		alreadyExists, err := c.kv.Put(ctx, key, value, overwrite)
		if err != nil {
			return mapKVError(err)
		}
		resp = wireproto.BuildKVPutResponse(alreadyExists)
	case "KVGet":
		key, err := wireproto.KVKeyRequest(raw)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		value, _, err := c.kv.Get(ctx, key)
		if err != nil {
			return mapKVError(err)
		}
		resp = wireproto.BuildKVGetResponse(value)
	case "KVDel":
		key, err := wireproto.KVKeyRequest(raw)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		if err := c.kv.Del(ctx, key); err != nil {
			return mapKVError(err)
		}
		resp = wireproto.Build().Marshal()
	case "KVList":
		prefix, err := wireproto.KVListRequestPrefix(raw)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		keys, err := c.kv.List(ctx, prefix)
		if err != nil {
			return mapKVError(err)
		}
		resp = wireproto.BuildKVListResponse(keys)
	case "KVExists":
		key, err := wireproto.KVKeyRequest(raw)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		exists, err := c.kv.Exists(ctx, key)
		if err != nil {
			return mapKVError(err)
		}
		resp = wireproto.BuildKVExistsResponse(exists)
	case "PinRuntimeEnvURI":
		uri, expiration, err := wireproto.PinRuntimeEnvURIRequestFields(raw)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		if err := c.kv.PinRuntimeEnvURI(ctx, uri, expiration); err != nil {
			return mapKVError(err)
		}
		resp = wireproto.Build().Marshal()
	}

	respMsg, err := rawToEmpty(resp)
	if err != nil {
		return err
	}
	return stream.SendMsg(respMsg)
}

func mapKVError(err error) error {
	return status.Error(codes.Unavailable, err.Error())
}

// lastSegment returns the method name portion of a gRPC full method string ("/pkg.Service/Method").
func lastSegment(fullMethod string) string {
	if i := strings.LastIndexByte(fullMethod, '/'); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}
