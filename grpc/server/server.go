package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/kbukum/bookingplatform/component"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/grpc/interceptor"
	"github.com/kbukum/bookingplatform/logger"
)

const componentName = "grpc-server"

var _ component.Component = (*Server)(nil)

// UnaryFunc handles one call. The payload is the raw JSON request body and
// the returned bytes are sent back as is.
type UnaryFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Service is a gRPC service whose methods exchange JSON frames.
type Service struct {
	// Name is the fully qualified service name, e.g. billing.BillingService.
	Name    string
	Methods map[string]UnaryFunc
}

// Server is a gRPC server component. It serves registered services plus
// grpc.health.v1, reporting SERVING for each service while running.
type Server struct {
	cfg    grpccfg.ServerConfig
	log    *logger.Logger
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	services []string
	listener net.Listener
	serving  bool
}

// New creates a Server. opts are appended after the defaults built from cfg.
func New(cfg grpccfg.ServerConfig, log *logger.Logger, opts ...grpc.ServerOption) *Server {
	cfg.ApplyDefaults()
	log = log.WithComponent(componentName)

	base := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.Keepalive.Time,
			Timeout: cfg.Keepalive.Timeout,
		}),
		// recovery -> logging -> error conversion
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryServerRecoveryInterceptor(log),
			interceptor.UnaryServerLoggingInterceptor(log),
			interceptor.UnaryServerErrorInterceptor(),
		),
	}
	gs := grpc.NewServer(append(base, opts...)...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{cfg: cfg, log: log, grpc: gs, health: hs}
}

// Register adds a service. It must be called before Start.
func (s *Server) Register(svc Service) {
	names := make([]string, 0, len(svc.Methods))
	for name := range svc.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	desc := grpc.ServiceDesc{
		ServiceName: svc.Name,
		HandlerType: (*interface{})(nil),
		Methods:     make([]grpc.MethodDesc, 0, len(names)),
	}
	for _, name := range names {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    methodHandler("/"+svc.Name+"/"+name, svc.Methods[name]),
		})
	}
	s.grpc.RegisterService(&desc, nil)

	s.mu.Lock()
	s.services = append(s.services, svc.Name)
	s.mu.Unlock()
	s.health.SetServingStatus(svc.Name, healthpb.HealthCheckResponse_NOT_SERVING)
}

func methodHandler(fullMethod string, fn UnaryFunc) grpc.MethodHandler {
	return func(_ interface{}, ctx context.Context, dec func(interface{}) error, icpt grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(grpccfg.Frame)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req interface{}) (interface{}, error) {
			out, err := fn(ctx, req.(*grpccfg.Frame).Data)
			if err != nil {
				return nil, err
			}
			return &grpccfg.Frame{Data: out}, nil
		}
		if icpt == nil {
			return call(ctx, in)
		}
		return icpt(ctx, in, &grpc.UnaryServerInfo{FullMethod: fullMethod}, call)
	}
}

func (s *Server) Name() string { return componentName }

// Start binds the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("grpc server failed to bind %s: %w", s.cfg.Address(), err)
	}
	return s.Serve(lis)
}

// Serve serves on lis in the background. Tests use it with bufconn.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.listener = lis
	s.serving = true
	services := append([]string(nil), s.services...)
	s.mu.Unlock()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, name := range services {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}

	go func() {
		if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.Error("gRPC server error", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}()

	s.log.Info("gRPC server started", map[string]interface{}{
		"addr":     lis.Addr().String(),
		"services": services,
	})
	return nil
}

// Stop marks every service NOT_SERVING and drains in-flight calls, forcing
// the stop when ctx ends first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.serving = false
	s.mu.Unlock()
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	select {
	case <-done:
		s.log.Info("gRPC server stopped")
	case <-shutdownCtx.Done():
		s.grpc.Stop()
		s.log.Warn("gRPC server forced to stop")
	}
	return nil
}

func (s *Server) Health(_ context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.serving {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not serving"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Address()
}
