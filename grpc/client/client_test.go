package client_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/kbukum/bookingplatform/discovery"
	apperrors "github.com/kbukum/bookingplatform/errors"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/grpc/client"
	"github.com/kbukum/bookingplatform/grpc/server"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/upstream"
)

var bufEndpoint = discovery.Endpoint{Host: "bufnet", Port: 1}

func startServer(t *testing.T) (*server.Server, *client.Dialer) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := server.New(grpccfg.ServerConfig{Port: 50052}, logger.NewNop())
	srv.Register(server.Service{
		Name: "billing.BillingService",
		Methods: map[string]server.UnaryFunc{
			"Echo": func(ctx context.Context, payload []byte) ([]byte, error) {
				return payload, nil
			},
			"GetInvoice": func(ctx context.Context, payload []byte) ([]byte, error) {
				return nil, apperrors.New(apperrors.ErrCodeNotFound, "Invoice with ID INV_1 not found", http.StatusNotFound)
			},
			"ProcessPayment": func(ctx context.Context, payload []byte) ([]byte, error) {
				return nil, apperrors.Conflict("Invoice INV_1 is already paid")
			},
			"Panic": func(ctx context.Context, payload []byte) ([]byte, error) {
				panic("boom")
			},
			"Slow": func(ctx context.Context, payload []byte) ([]byte, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	})
	if err := srv.Serve(lis); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	dialer, err := client.NewDialer(grpccfg.ClientConfig{
		Services: map[string]string{
			"billing-service": "billing.BillingService",
			"ghost-service":   "ghost.GhostService",
		},
	}, logger.NewNop(), grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	return srv, dialer
}

func dial(t *testing.T, d *client.Dialer, service string) upstream.Handle {
	t.Helper()
	h, err := d.Dial(context.Background(), service, bufEndpoint)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHandle_InvokePassesPayloadThrough(t *testing.T) {
	_, d := startServer(t)
	h := dial(t, d, "billing-service")

	if h.Endpoint() != bufEndpoint || h.Service() != "billing-service" {
		t.Errorf("handle = %s %v", h.Service(), h.Endpoint())
	}

	payload := []byte(`{"customer_id":"c-1","amount":42.5}`)
	out, err := h.Invoke(context.Background(), "Echo", payload)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(out) != string(payload) {
		t.Errorf("got %s, want %s", out, payload)
	}
}

func TestHandle_ApplicationErrorsKeepCodeAndMessage(t *testing.T) {
	_, d := startServer(t)
	h := dial(t, d, "billing-service")

	tests := []struct {
		method     string
		wantCode   codes.Code
		wantStatus int
		wantMsg    string
	}{
		{"GetInvoice", codes.NotFound, http.StatusNotFound, "Invoice with ID INV_1 not found"},
		{"ProcessPayment", codes.FailedPrecondition, http.StatusConflict, "Invoice INV_1 is already paid"},
		{"Missing", codes.Unimplemented, http.StatusNotImplemented, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, err := h.Invoke(context.Background(), tt.method, []byte(`{}`))
			if status.Code(err) != tt.wantCode {
				t.Fatalf("code = %v, want %v (%v)", status.Code(err), tt.wantCode, err)
			}
			if kind := client.Classify(err); kind != upstream.KindTerminal {
				t.Errorf("kind = %v, want terminal", kind)
			}
			appErr := grpccfg.FromGRPC(err)
			if appErr.HTTPStatus != tt.wantStatus {
				t.Errorf("http status = %d, want %d", appErr.HTTPStatus, tt.wantStatus)
			}
			if tt.wantMsg != "" && appErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", appErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestHandle_PanicBecomesInternal(t *testing.T) {
	_, d := startServer(t)
	h := dial(t, d, "billing-service")

	_, err := h.Invoke(context.Background(), "Panic", nil)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestHandle_DeadlineIsTimeout(t *testing.T) {
	_, d := startServer(t)
	h := dial(t, d, "billing-service")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Invoke(ctx, "Slow", nil)
	if kind := client.Classify(err); kind != upstream.KindTimeout {
		t.Errorf("kind = %v, want timeout (%v)", kind, err)
	}
}

func TestHandle_Probe(t *testing.T) {
	srv, d := startServer(t)

	if err := dial(t, d, "billing-service").Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if err := dial(t, d, "ghost-service").Probe(context.Background()); err == nil {
		t.Error("probe of an unregistered service should fail")
	}

	_ = srv.Stop(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := dial(t, d, "billing-service").Probe(ctx); err == nil {
		t.Error("probe after stop should fail")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want upstream.Kind
	}{
		{"deadline status", status.Error(codes.DeadlineExceeded, "deadline"), upstream.KindTimeout},
		{"context deadline", context.DeadlineExceeded, upstream.KindTimeout},
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), upstream.KindConnection},
		{"plain dial error", errors.New("dial tcp 10.0.0.1:50052: connection refused"), upstream.KindConnection},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "busy"), upstream.KindTransient},
		{"aborted", status.Error(codes.Aborted, "retry"), upstream.KindTransient},
		{"canceled", status.Error(codes.Canceled, "canceled"), upstream.KindCanceled},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), upstream.KindTerminal},
		{"failed precondition", status.Error(codes.FailedPrecondition, "paid"), upstream.KindTerminal},
		{"internal", status.Error(codes.Internal, "oops"), upstream.KindTerminal},
		{"unknown plain error", errors.New("something else"), upstream.KindTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBootstrapOverGRPC(t *testing.T) {
	_, d := startServer(t)
	lookup := discovery.LookupFunc(func(ctx context.Context, name string) ([]discovery.HealthRecord, error) {
		return []discovery.HealthRecord{{
			ServiceName:    name,
			ServiceAddress: bufEndpoint.Host,
			Port:           bufEndpoint.Port,
			Checks:         []discovery.Check{{CheckID: "service:" + name, Status: discovery.CheckPassing}},
		}}, nil
	})
	b := upstream.NewBootstrapper(lookup, discovery.Selector{}, d, logger.NewNop())
	defer b.Close()

	h, err := b.Get(context.Background(), "billing-service")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	caller := upstream.NewCaller(client.Classify, logger.NewNop())
	out, err := caller.Call(context.Background(), h, "Echo", []byte(`{"a":1}`), upstream.Policy{Timeout: time.Second})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(out) != `{"a":1}` {
		t.Errorf("got %s", out)
	}
}
