// Package main is the entry point for the client-session proxier. It loads configuration (env +
// YAML), builds the port pool, process launcher, runtime-env provisioner, cluster bootstrapper,
// KV store and the session manager, then wires the three client-facing gRPC servers
// (control/data/log) with UnknownServiceHandler so every RPC that lands on them is proxied. It also serves a metrics endpoint and, on SIGINT/SIGTERM, drains the
// three servers before calling SessionManager.ShutdownAll.
package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FeckMell/clientproxier/adapters/cluster"
	"github.com/FeckMell/clientproxier/adapters/kv"
	"github.com/FeckMell/clientproxier/adapters/process"
	"github.com/FeckMell/clientproxier/adapters/runtimeenv"
	"github.com/FeckMell/clientproxier/metrics"
	"github.com/FeckMell/clientproxier/proxy"
	"github.com/FeckMell/clientproxier/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
)

// main assembles the proxier from LoadConfig's resolved configuration and runs it until a
// SIGINT/SIGTERM is received.
//
// Parameters and return: none (exits via os.Exit(1) on config/startup error).
//
// Called when the binary is started.
func main() {
	instanceID := uuid.NewString()
	logger := log.With(log.NewLogfmtLogger(os.Stderr), "ts", log.DefaultTimestampUTC, "instance", instanceID)

	cfg, err := LoadConfig()
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}

	process.LogFateShareSupport(logger)

	portPool := service.NewPortPool(cfg.PortLow, cfg.PortHigh)
	launcher := process.NewLauncher(cfg.BackendCommand)
	clusterBootstrapper := cluster.NewStatic(cfg.ClusterAddress, cfg.BackendLogDir)
	clock := service.NewTimeProvider(func() time.Time { return time.Now().UTC() })

	provisioner := runtimeenv.NewProvisioner(cfg.RuntimeEnvAgentAddress)

	sessionMetrics := metrics.New(cfg.PortLow, cfg.PortHigh)

	sm := service.NewSessionManager(
		portPool,
		launcher,
		provisioner,
		clusterBootstrapper,
		clock,
		logger,
		cfg.ChannelTimeout,
		cfg.ReapInterval,
		cfg.BackendLogDir,
		cfg.BackendReadyTag,
		sessionMetrics,
	)

	redisClient, err := kv.NewRedisUniversalClient(cfg.KVRedisAddr, cfg.KVRedisUsername, cfg.KVRedisPassword)
	if err != nil {
		level.Error(logger).Log("msg", "build redis client", "err", err)
		os.Exit(1)
	}
	kvStore := kv.NewStore(redisClient)

	controlServicer := proxy.NewControlServicer(sm, kvStore, logger)
	dataServicer := proxy.NewDataServicer(sm, clock, logger)
	logServicer := proxy.NewLogServicer(sm, logger, cfg.LogStreamRetries, cfg.LogStreamRetryInterval)

	control := newUnknownServiceServer(logger, uint32(cfg.ThreadPoolSize), controlServicer.Handle)
	data := newUnknownServiceServer(logger, uint32(cfg.ThreadPoolSize), dataServicer.Handle)
	logSrv := newUnknownServiceServer(logger, uint32(cfg.ThreadPoolSize), logServicer.Handle)

	controlLis := mustListen(logger, cfg.ControlListenAddr)
	dataLis := mustListen(logger, cfg.DataListenAddr)
	logLis := mustListen(logger, cfg.LogListenAddr)

	metricsServer := &http.Server{Addr: cfg.MetricsListenAddr, Handler: sessionMetrics.Handler()}

	level.Info(logger).Log("msg", "starting client-session proxier",
		"control", cfg.ControlListenAddr, "data", cfg.DataListenAddr, "log", cfg.LogListenAddr,
		"metrics", cfg.MetricsListenAddr)

	go serveOrExit(logger, "control", control, controlLis)
	go serveOrExit(logger, "data", data, dataLis)
	go serveOrExit(logger, "log", logSrv, logLis)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "metrics server", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	level.Info(logger).Log("msg", "shutting down")

	stopped := make(chan struct{})
	go func() {
		control.GracefulStop()
		data.GracefulStop()
		logSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		control.Stop()
		data.Stop()
		logSrv.Stop()
	}

	_ = metricsServer.Close()
	sm.ShutdownAll()
}

// newUnknownServiceServer builds a gRPC server whose only RPC handler is the given
// UnknownServiceHandler, guarded by the strict-cancellation-aware error interceptor and a panic
// recovery interceptor. numWorkers bounds the shared stream-worker pool instead of letting
// grpc-go spawn one goroutine per stream.
func newUnknownServiceServer(logger log.Logger, numWorkers uint32, handler func(any, grpc.ServerStream) error) *grpc.Server {
	return grpc.NewServer(
		grpc.NumStreamWorkers(numWorkers),
		grpc.ChainStreamInterceptor(
			service.StreamErrorInterceptor(logger),
			recovery.StreamServerInterceptor(),
		),
		grpc.UnknownServiceHandler(handler),
	)
}

func mustListen(logger log.Logger, addr string) net.Listener {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		level.Error(logger).Log("msg", "listen", "addr", addr, "err", err)
		os.Exit(1)
	}
	return lis
}

func serveOrExit(logger log.Logger, name string, srv *grpc.Server, lis net.Listener) {
	if err := srv.Serve(lis); err != nil {
		level.Error(logger).Log("msg", "serve", "server", name, "err", err)
	}
}
