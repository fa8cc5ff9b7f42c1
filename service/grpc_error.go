package service

import (
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors for the taxonomy in the error handling design: one per row, each wrapped with
// fmt.Errorf("...: %w", ErrX) at the raising site so errors.Is unwraps cleanly here.
var (
	// ErrPortExhausted: acquire found no bindable port after one full pass of the free list.
	ErrPortExhausted = errors.New("port pool exhausted")
	// ErrStartupFailed: spawn failed, or the shim never execed into the backend binary before exit.
	ErrStartupFailed = errors.New("backend startup failed")
	// ErrAgentUnreachable: the provisioner exhausted its retry budget without a transport-level response.
	ErrAgentUnreachable = errors.New("runtime-env agent unreachable")
	// ErrAgentFailed: the agent returned a well-formed FAILED response.
	ErrAgentFailed = errors.New("runtime-env agent reported failure")
	// ErrChannelTimeout: the backend channel did not become ready within the channel timeout.
	ErrChannelTimeout = errors.New("backend channel did not become ready in time")
	// ErrClientNotFound: no Backend exists (or no longer exists) for the given client id.
	ErrClientNotFound = errors.New("unknown client id")
	// ErrDuplicateClient: register called twice for the same still-live client id.
	ErrDuplicateClient = errors.New("client already registered")
)

const msgBackendUnavailable = "backend service unavailable"

// StreamErrorInterceptor returns a stream server interceptor: runs the handler, maps the
// returned error via grpcStatusFromError, and logs the error for diagnostics.
//
// Parameter logger — logger for "stream handler error" with method and err.
//
// Returns: grpc.StreamServerInterceptor. The error it returns is already a gRPC status.
//
// Called from cmd/main when creating the gRPC server for each of the three servicers
// (grpc.ChainStreamInterceptor), alongside the recovery interceptor from go-grpc-middleware.
func StreamErrorInterceptor(logger log.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		if err != nil {
			level.Info(logger).Log(
				"msg", "stream handler error",
				"method", info.FullMethod,
				"err", err,
			)
			err = grpcStatusFromError(err)
		}
		return err
	}
}

// grpcStatusFromError maps a component error to a gRPC status:
// ClientNotFound -> NotFound; ChannelTimeout -> NotFound (a channel that never became ready
// surfaces to the caller the same as an absent client); DuplicateClient -> AlreadyExists; PortExhausted,
// StartupFailed, AgentUnreachable, AgentFailed -> Unavailable (session-init-time failures, not
// routed to the caller as a distinct code since they're consumed inside Datapath's own init
// response rather than a gRPC status); any existing non-Unknown gRPC status is passed through
// unchanged (so ForwardFailure, which is whatever status the backend itself returned, survives
// intact); everything else defaults to Unavailable.
//
// Parameter err — error returned by a servicer handler; nil is allowed.
//
// Returns: nil if err == nil; otherwise *status.Error with the appropriate code and message.
//
// Called from StreamErrorInterceptor after calling the handler.
func grpcStatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s.Err()
	}
	switch {
	case errors.Is(err, ErrClientNotFound), errors.Is(err, ErrChannelTimeout):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrDuplicateClient):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrPortExhausted), errors.Is(err, ErrStartupFailed),
		errors.Is(err, ErrAgentUnreachable), errors.Is(err, ErrAgentFailed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Unavailable, msgBackendUnavailable)
	}
}

// isStrictCancellation reports whether err is exactly a gRPC Canceled status, for translating
// stream cancellation into clean end-of-iteration. The check is deliberately strict: only an
// error that status.FromError recognizes as a genuine status with code Canceled qualifies, not
// arbitrary wrapped errors that merely mention cancellation. Cancellations from already-gone
// clients otherwise surface as spurious server exceptions.
//
// Parameter err — error observed while reading from a forwarded request iterator.
//
// Returns: true iff err should be translated to a clean end-of-stream rather than propagated.
//
// Called from proxy's request-iterator forwarding in all three servicers (control, data, log).
func isStrictCancellation(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	return ok && s.Code() == codes.Canceled
}

// IsStrictCancellation is the exported form of isStrictCancellation, for use by proxy's
// request-iterator forwarding in all three servicers (control, data, log).
func IsStrictCancellation(err error) bool {
	return isStrictCancellation(err)
}
