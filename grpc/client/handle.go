package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kbukum/bookingplatform/discovery"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/upstream"
)

var _ upstream.Handle = (*Handle)(nil)

// Handle is a gRPC connection to one endpoint of one service. Payloads are
// JSON documents carried in frames, so the gateway never needs the
// service's message types.
type Handle struct {
	service     string
	grpcService string
	endpoint    discovery.Endpoint
	conn        *grpc.ClientConn
	health      healthpb.HealthClient
}

func (h *Handle) Service() string              { return h.service }
func (h *Handle) Endpoint() discovery.Endpoint { return h.endpoint }

// Conn exposes the underlying connection.
func (h *Handle) Conn() *grpc.ClientConn { return h.conn }

// Invoke calls /<grpc service>/<method> with payload as the request body.
func (h *Handle) Invoke(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	var out grpccfg.Frame
	err := h.conn.Invoke(ctx, "/"+h.grpcService+"/"+method,
		&grpccfg.Frame{Data: payload}, &out,
		grpc.CallContentSubtype(grpccfg.CodecName))
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Probe asks the standard health service whether the service is SERVING.
func (h *Handle) Probe(ctx context.Context) error {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: h.grpcService})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health check: %s is %s", h.grpcService, resp.GetStatus())
	}
	return nil
}

func (h *Handle) Close() error {
	return h.conn.Close()
}
