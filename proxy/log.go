package proxy

import (
	"context"
	"time"

	"github.com/FeckMell/clientproxier/domain"
	"github.com/FeckMell/clientproxier/helpers"
	"github.com/FeckMell/clientproxier/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const logMethod = "/ray.rpc.RayletLogStreamerService/Logstream"

// The channel-lookup retry budget defaults: the log client races the data client, so the
// servicer tries up to 5 times, 2 seconds apart, before giving up.
const (
	defaultLogChannelRetries       = 5
	defaultLogChannelRetryInterval = 2 * time.Second
)

// LogServicer terminates the client-facing log-streaming service.
type LogServicer struct {
	sm            interfaces.SessionManager
	logger        log.Logger
	retries       int
	retryInterval time.Duration
}

// NewLogServicer constructs a LogServicer. Non-positive retries/retryInterval fall back to the
// 5 x 2s defaults (domain.Config.LogStreamRetries / LogStreamRetryInterval carry the configured
// values from cmd).
func NewLogServicer(sm interfaces.SessionManager, logger log.Logger, retries int, retryInterval time.Duration) *LogServicer {
	if retries <= 0 {
		retries = defaultLogChannelRetries
	}
	if retryInterval <= 0 {
		retryInterval = defaultLogChannelRetryInterval
	}
	return &LogServicer{sm: sm, logger: logger, retries: retries, retryInterval: retryInterval}
}

// Handle forwards a Logstream call, retrying channel resolution since the log client commonly
// connects before the data client has finished registering the backend.
func (l *LogServicer) Handle(_ any, stream grpc.ServerStream) error {
	ctx := stream.Context()
	md, _ := metadata.FromIncomingContext(ctx)
	clientID, ok := helpers.GetClientID(md)
	if !ok {
		return nil
	}
	cid := domain.ClientID(clientID)

	conn, err := l.channelWithRetry(ctx, cid)
	if err != nil {
		level.Info(l.logger).Log("msg", "Logstream gave up waiting for a channel", "client_id", clientID, "err", err)
		return status.Error(codes.NotFound, "unknown client id")
	}

	outCtx, cancel := context.WithCancel(metadata.NewOutgoingContext(ctx, md.Copy()))
	defer cancel()
	clientStream, err := conn.NewStream(outCtx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, logMethod)
	if err != nil {
		return err
	}

	return biForward(stream, clientStream)
}

// channelWithRetry tries ChannelFor up to l.retries times, l.retryInterval apart.
func (l *LogServicer) channelWithRetry(ctx context.Context, cid domain.ClientID) (*grpc.ClientConn, error) {
	var lastErr error
	for attempt := 0; attempt < l.retries; attempt++ {
		conn, err := l.sm.ChannelFor(ctx, cid)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == l.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	return nil, lastErr
}
