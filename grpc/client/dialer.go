package client

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/kbukum/bookingplatform/discovery"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/grpc/interceptor"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/observability"
	"github.com/kbukum/bookingplatform/upstream"
)

var _ upstream.Dialer = (*Dialer)(nil)

// Dialer builds gRPC handles bound to a single endpoint. The target uses
// the passthrough resolver: the endpoint has already been chosen through
// discovery and must not be re-resolved or load balanced.
type Dialer struct {
	cfg     grpccfg.ClientConfig
	log     *logger.Logger
	metrics *observability.RPCMetrics
	extra   []grpc.DialOption
}

// NewDialer creates a Dialer. extra options are appended after the ones
// built from cfg.
func NewDialer(cfg grpccfg.ClientConfig, log *logger.Logger, extra ...grpc.DialOption) (*Dialer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("grpc client config: %w", err)
	}
	m, err := observability.NewRPCMetrics(observability.Meter(""))
	if err != nil {
		return nil, err
	}
	return &Dialer{cfg: cfg, log: log.WithComponent("grpc-client"), metrics: m, extra: extra}, nil
}

// Dial creates a client for ep. No connection is made until the first call.
func (d *Dialer) Dial(_ context.Context, service string, ep discovery.Endpoint) (upstream.Handle, error) {
	opts, err := d.dialOptions()
	if err != nil {
		return nil, err
	}
	target := "passthrough:///" + ep.Address()
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc: create client for %s: %w", ep.Address(), err)
	}

	d.log.Debug("gRPC client created", map[string]interface{}{
		logger.FieldUpstream: service,
		logger.FieldEndpoint: ep.Address(),
		"tls":                d.cfg.TLS.Enabled,
	})

	return &Handle{
		service:     service,
		grpcService: d.cfg.ServiceFor(service),
		endpoint:    ep,
		conn:        conn,
		health:      healthpb.NewHealthClient(conn),
	}, nil
}

func (d *Dialer) dialOptions() ([]grpc.DialOption, error) {
	creds, err := transportCredentials(d.cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                d.cfg.Keepalive.Time,
			Timeout:             d.cfg.Keepalive.Timeout,
			PermitWithoutStream: d.cfg.Keepalive.PermitWithoutStream,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(d.cfg.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(d.cfg.MaxSendMsgSize),
		),
	}

	// timeout -> metrics -> logging
	var unary []grpc.UnaryClientInterceptor
	if d.cfg.CallTimeout > 0 {
		unary = append(unary, interceptor.UnaryClientTimeoutInterceptor(d.cfg.CallTimeout))
	}
	unary = append(unary,
		interceptor.UnaryClientMetricsInterceptor(d.metrics),
		interceptor.UnaryClientLoggingInterceptor(d.log),
	)
	opts = append(opts, grpc.WithChainUnaryInterceptor(unary...))

	return append(opts, d.extra...), nil
}

func transportCredentials(cfg grpccfg.TLSConfig) (credentials.TransportCredentials, error) {
	if !cfg.Enabled {
		return insecure.NewCredentials(), nil
	}
	if cfg.CAFile != "" {
		creds, err := credentials.NewClientTLSFromFile(cfg.CAFile, cfg.ServerName)
		if err != nil {
			return nil, fmt.Errorf("grpc: load CA %s: %w", cfg.CAFile, err)
		}
		return creds, nil
	}
	return credentials.NewTLS(&tls.Config{
		ServerName: cfg.ServerName,
		MinVersion: tls.VersionTLS12,
	}), nil
}
