package proxy

import (
	"context"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/FeckMell/clientproxier/domain"
	"github.com/FeckMell/clientproxier/helpers"
	"github.com/FeckMell/clientproxier/interfaces"
	"github.com/FeckMell/clientproxier/service"
	"github.com/FeckMell/clientproxier/wireproto"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const dataMethod = "/ray.rpc.RayletDataStreamerService/Datapath"

// DataServicer terminates the client-facing data service: the session entry point. Its server listens
// on its own address (cmd/main), so every RPC landing here is a Datapath call, with no method
// dispatch needed, unlike ControlServicer.
type DataServicer struct {
	sm     interfaces.SessionManager
	clock  interfaces.TimeProvider
	logger log.Logger
}

// NewDataServicer constructs a DataServicer.
func NewDataServicer(sm interfaces.SessionManager, clock interfaces.TimeProvider, logger log.Logger) *DataServicer {
	return &DataServicer{sm: sm, clock: clock, logger: logger}
}

// Handle runs the Datapath session protocol: resolve identity, branch on reconnect vs new
// session, forward, finalize.
func (d *DataServicer) Handle(_ any, stream grpc.ServerStream) error {
	ctx := stream.Context()
	md, _ := metadata.FromIncomingContext(ctx)

	clientID, ok := helpers.GetClientID(md)
	if !ok {
		return nil
	}
	reconnecting := helpers.GetReconnecting(md)
	cid := domain.ClientID(clientID)

	startTime := d.clock.Now()

	var cleanupRequested atomic.Bool
	committed := false
	defer func() {
		if committed {
			d.sm.FinalizeDatapath(cid, startTime, cleanupRequested.Load())
		}
	}()

	var conn *grpc.ClientConn
	var firstOutbound *emptypb.Empty
	var err error

	if reconnecting {
		conn, err = d.sm.Reconnect(ctx, cid, startTime)
		if err != nil {
			return status.Error(codes.NotFound, "session already cleaned up")
		}
		committed = true
	} else {
		if err = d.sm.BeginNew(cid, startTime); err != nil {
			return err
		}
		committed = true

		req := &emptypb.Empty{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		raw, err := marshalEmpty(req)
		if err != nil {
			return err
		}
		parsed, isInit, err := wireproto.ParseDataRequestInit(raw)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		if !isInit {
			return status.Error(codes.InvalidArgument, "first Datapath message must carry the init variant")
		}
		d.sm.RecordGracePeriod(cid, uint32(parsed.ReconnectGracePeriod/time.Second))

		running, startErr := d.sm.Start(ctx, cid, parsed.SerializedRuntimeEnv, parsed.RuntimeEnvConfig, parsed.JobConfig)
		if startErr != nil || !running {
			msg := "backend process did not start"
			if startErr != nil {
				msg = startErr.Error()
			}
			level.Info(d.logger).Log("msg", "Datapath init failed", "client_id", clientID, "err", msg)
			failMsg, buildErr := rawToEmpty(wireproto.BuildInitFailureResponse(msg))
			if buildErr != nil {
				return buildErr
			}
			return stream.SendMsg(failMsg)
		}

		rebuilt := wireproto.RebuildDataRequestInit(parsed, parsed.JobConfig)
		firstOutbound, err = rawToEmpty(rebuilt)
		if err != nil {
			return err
		}

		conn, err = d.sm.ChannelFor(ctx, cid)
		if err != nil {
			return err
		}
	}

	return d.forward(stream, conn, clientID, reconnecting, firstOutbound, &cleanupRequested)
}

// forward opens the backend-side bidi stream, optionally sends the (possibly rebuilt) init
// message first, then runs the two forwarding directions until either side ends, intercepting
// connection_cleanup/connection_info responses along the way.
func (d *DataServicer) forward(stream grpc.ServerStream, conn *grpc.ClientConn, clientID string, reconnecting bool, firstOutbound *emptypb.Empty, cleanupRequested *atomic.Bool) error {
	outMD, _ := metadata.FromIncomingContext(stream.Context())
	outMD = outMD.Copy()
	outMD.Set(helpers.HeaderClientID, clientID)
	outMD.Set(helpers.HeaderReconnecting, strconv.FormatBool(reconnecting))

	outCtx, cancel := context.WithCancel(metadata.NewOutgoingContext(stream.Context(), outMD))
	defer cancel()

	clientStream, err := conn.NewStream(outCtx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, dataMethod)
	if err != nil {
		return err
	}
	if firstOutbound != nil {
		if err := clientStream.SendMsg(firstOutbound); err != nil {
			return err
		}
	}

	c2sErrCh := forwardServerToClient(stream, clientStream)
	s2cErrCh := d.forwardResponses(clientStream, stream, cleanupRequested)

	for i := 0; i < 2; i++ {
		select {
		case err := <-c2sErrCh:
			if err == io.EOF || service.IsStrictCancellation(err) {
				_ = clientStream.CloseSend()
				continue
			}
			return err
		case err := <-s2cErrCh:
			stream.SetTrailer(clientStream.Trailer())
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// forwardResponses forwards backend -> client, observing the connection_cleanup/connection_info
// variants along the way.
func (d *DataServicer) forwardResponses(src grpc.ClientStream, dst grpc.ServerStream, cleanupRequested *atomic.Bool) <-chan error {
	ret := make(chan error, 1)
	go func() {
		f := &emptypb.Empty{}
		for {
			if err := src.RecvMsg(f); err != nil {
				ret <- err
				return
			}
			raw, err := marshalEmpty(f)
			if err != nil {
				ret <- err
				return
			}
			if wireproto.IsConnectionCleanup(raw) {
				cleanupRequested.Store(true)
			}
			out := f
			if wireproto.IsConnectionInfo(raw) {
				rewritten, rwErr := wireproto.RewriteConnectionInfoNumClients(raw, d.sm.NumClients())
				if rwErr == nil {
					if m, convErr := rawToEmpty(rewritten); convErr == nil {
						out = m
					}
				}
			}
			if err := dst.SendMsg(out); err != nil {
				ret <- err
				return
			}
		}
	}()
	return ret
}
