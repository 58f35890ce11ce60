// Package grpcserver mirrors the monitor's state onto the standard gRPC
// health checking protocol, so orchestrators and LB health checks can watch
// the supervised service without speaking the HTTP API.
package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	healthsvc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Niyaz-313/trading-bot/internal/health"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

// Server serves grpc.health.v1.Health. The empty service name reports the
// monitored service; registering under "" follows the protocol's convention
// for the overall server.
type Server struct {
	srv     *grpc.Server
	hs      *healthsvc.Server
	service string
	log     logpkg.Logger
}

// New creates a Server reporting for the named service. The initial status
// reflects the given state.
func New(service string, initial health.State, logger logpkg.Logger) *Server {
	s := &Server{
		srv:     grpc.NewServer(),
		hs:      healthsvc.NewServer(),
		service: service,
		log:     logger.WithComponent("grpc"),
	}
	healthpb.RegisterHealthServer(s.srv, s.hs)
	s.set(initial)
	return s
}

// StateChanged implements health.TransitionSink.
func (s *Server) StateChanged(_, to health.State, _ time.Time) { s.set(to) }

func (s *Server) set(st health.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	switch st {
	case health.StateActive:
		status = healthpb.HealthCheckResponse_SERVING
	case health.StateUnknown:
		status = healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
	s.hs.SetServingStatus(s.service, status)
	s.hs.SetServingStatus("", status)
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		s.srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
