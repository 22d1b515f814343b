package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/ak7sky/popmatch/internal/core"
	api "github.com/ak7sky/popmatch/internal/grpc/api"
	"github.com/ak7sky/popmatch/internal/logger"
	"google.golang.org/grpc"
)

type AppServer struct {
	server          *grpc.Server
	logger          logger.Logger
	errCh           chan error
	shutdownTimeout time.Duration
}

func New(msrv core.Matcher, logger logger.Logger, shutdownTimeout time.Duration) *AppServer {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggerInterceptor(logger),
			reqValidatorInterceptor(),
		),
	)
	api.RegisterMatchServiceServer(grpcServer, newHandler(msrv))
	return &AppServer{
		server:          grpcServer,
		logger:          logger,
		errCh:           make(chan error, 1),
		shutdownTimeout: shutdownTimeout,
	}
}

// Start listens on addr and serves in the background. Listen and serve
// failures are reported on ErrCh.
func Start(msrv core.Matcher, logger logger.Logger, addr string, shutdownTimeout time.Duration) *AppServer {
	appServer := New(msrv, logger, shutdownTimeout)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		appServer.errCh <- err
		return appServer
	}
	appServer.Serve(listener)
	return appServer
}

func (appServer *AppServer) Serve(listener net.Listener) {
	appServer.logger.Info("starting server on %s", listener.Addr().String())

	go func() {
		appServer.errCh <- appServer.server.Serve(listener)
		close(appServer.errCh)
	}()
}

func (appServer *AppServer) ErrCh() <-chan error {
	return appServer.errCh
}

func (appServer *AppServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), appServer.shutdownTimeout)
	defer cancel()
	return shutdown(ctx, appServer.server)
}

func shutdown(ctx context.Context, server *grpc.Server) error {
	gracefulStopDone := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(gracefulStopDone)
	}()

	select {
	case <-gracefulStopDone:
		return nil
	case <-ctx.Done():
		server.Stop()
		return ctx.Err()
	}
}
