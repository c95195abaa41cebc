package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/kbukum/bookingplatform/discovery"
	apperrors "github.com/kbukum/bookingplatform/errors"
	"github.com/kbukum/bookingplatform/gateway"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/grpc/client"
	"github.com/kbukum/bookingplatform/grpc/server"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/observability"
	"github.com/kbukum/bookingplatform/upstream"
)

func init() { gin.SetMode(gin.TestMode) }

type env struct {
	engine  *gin.Engine
	fwd     *gateway.Forwarder
	boot    *upstream.Bootstrapper
	spans   *tracetest.SpanRecorder
	lookups atomic.Int32
}

type envOptions struct {
	registryDown bool
	fallback     bool
}

// newEnv serves a billing backend over bufconn and puts a gateway in front
// of it. The registry knows billing-service only.
func newEnv(t *testing.T, o envOptions) *env {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := server.New(grpccfg.ServerConfig{Port: 50052}, logger.NewNop())
	echo := func(ctx context.Context, payload []byte) ([]byte, error) { return payload, nil }
	srv.Register(server.Service{
		Name: "billing.BillingService",
		Methods: map[string]server.UnaryFunc{
			"CreateInvoice": echo,
			"ListInvoices":  echo,
			"GetInvoice": func(ctx context.Context, payload []byte) ([]byte, error) {
				var req struct {
					InvoiceID string `json:"invoice_id"`
				}
				_ = json.Unmarshal(payload, &req)
				if req.InvoiceID == "INV_missing" {
					return nil, apperrors.New(apperrors.ErrCodeNotFound,
						fmt.Sprintf("Invoice with ID %s not found", req.InvoiceID), http.StatusNotFound)
				}
				return payload, nil
			},
			"ProcessPayment": func(ctx context.Context, payload []byte) ([]byte, error) {
				var req struct {
					InvoiceID string `json:"invoice_id"`
				}
				_ = json.Unmarshal(payload, &req)
				if req.InvoiceID == "INV_paid" {
					return nil, apperrors.Conflict("Invoice INV_paid is already paid")
				}
				return payload, nil
			},
		},
	})
	if err := srv.Serve(lis); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	dialer, err := client.NewDialer(grpccfg.ClientConfig{
		Services: map[string]string{gateway.BillingService: "billing.BillingService"},
	}, logger.NewNop(), grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}

	e := &env{spans: tracetest.NewSpanRecorder()}
	lookup := discovery.LookupFunc(func(ctx context.Context, name string) ([]discovery.HealthRecord, error) {
		e.lookups.Add(1)
		if o.registryDown {
			return nil, fmt.Errorf("%w: dial tcp 10.9.8.7:8500: connection refused", discovery.ErrRegistryUnavailable)
		}
		if name != gateway.BillingService {
			return nil, discovery.ErrServiceNotFound
		}
		return []discovery.HealthRecord{{
			ServiceName:    name,
			ServiceAddress: "10.0.0.7",
			Port:           50052,
			Checks:         []discovery.Check{{CheckID: "service:" + name, Status: discovery.CheckPassing}},
		}}, nil
	})

	billing := upstream.DependencyConfig{Name: gateway.BillingService, MaxAttempts: 3}
	if o.fallback {
		billing.StaticAddress = "billing.internal:50052"
	}
	e.boot = upstream.NewBootstrapper(lookup, discovery.Selector{}, dialer, logger.NewNop(),
		upstream.WithSleep(func(context.Context, time.Duration) error { return nil }),
		upstream.WithDependencies(billing, upstream.DependencyConfig{Name: gateway.BookingService, MaxAttempts: 2}),
	)
	t.Cleanup(func() { _ = e.boot.Close() })

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(e.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	caller := upstream.NewCaller(client.Classify, logger.NewNop())
	e.fwd = gateway.NewForwarder(e.boot, caller, logger.NewNop(), gateway.WithTracer(tp.Tracer("test")))

	e.engine = gin.New()
	gateway.New(e.fwd, logger.NewNop(), gateway.WithDiscoveryDebug(lookup, discovery.Selector{})).Register(e.engine)
	return e
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body, ok := decode(t, w)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error object in %s", w.Body)
	}
	return body
}

func TestGateway_ForwardsBody(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(http.MethodPost, "/billing", `{"customer_id":"c-1","amount":120.5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if got := w.Body.String(); got != `{"customer_id":"c-1","amount":120.5}` {
		t.Errorf("body = %s", got)
	}
}

func TestGateway_MergesPathParamsIntoBody(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(http.MethodPost, "/billing/invoices/INV_1/payments", `{"amount":10,"payment_method":"card"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	got := decode(t, w)
	if got["invoice_id"] != "INV_1" || got["amount"] != float64(10) || got["payment_method"] != "card" {
		t.Errorf("payload = %v", got)
	}
}

func TestGateway_QueryParamsBecomePayload(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(http.MethodGet, "/billing/invoices?page=2&limit=5&status=pending", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	got := decode(t, w)
	if got["page"] != "2" || got["limit"] != "5" || got["status"] != "pending" {
		t.Errorf("payload = %v", got)
	}
}

func TestGateway_ApplicationErrorsPassThrough(t *testing.T) {
	e := newEnv(t, envOptions{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", http.MethodGet, "/billing/invoices/INV_missing", "", http.StatusNotFound, "NOT_FOUND", "Invoice with ID INV_missing not found"},
		{"already paid", http.MethodPost, "/billing/invoices/INV_paid/payments", `{"amount":1}`, http.StatusConflict, "CONFLICT", "Invoice INV_paid is already paid"},
		{"invalid json", http.MethodPost, "/billing", `{"amount":`, http.StatusBadRequest, "INVALID_INPUT", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body)
			}
			got := errorBody(t, w)
			if got["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", got["code"], tt.wantCode)
			}
			if tt.wantMsg != "" && got["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %s", got["message"], tt.wantMsg)
			}
		})
	}
}

func TestGateway_UnavailableRevealsNothing(t *testing.T) {
	e := newEnv(t, envOptions{registryDown: true})

	w := e.do(http.MethodGet, "/billing/invoices/INV_1", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	body := w.Body.String()
	for _, leak := range []string{"10.9.8.7", "8500", "attempt", "registry", "connection refused"} {
		if strings.Contains(body, leak) {
			t.Errorf("response leaks %q: %s", leak, body)
		}
	}
	if got := errorBody(t, w); got["code"] != string(apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("code = %v", got["code"])
	}
	if n := e.lookups.Load(); n != 3 {
		t.Errorf("lookups = %d, want 3", n)
	}
	if s := e.boot.State(gateway.BillingService); s.Phase != upstream.PhaseFailed {
		t.Errorf("state = %v, want failed", s)
	}
}

func TestGateway_UnknownServiceIsUnavailable(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(http.MethodGet, "/bookings", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
}

func TestForwarder_UsesStaticFallback(t *testing.T) {
	e := newEnv(t, envOptions{registryDown: true, fallback: true})

	resp, err := e.fwd.Forward(context.Background(), gateway.Request{
		Service: gateway.BillingService,
		Method:  "GetInvoice",
		Payload: []byte(`{"invoice_id":"INV_1"}`),
	})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !resp.Degraded {
		t.Error("expected a degraded response")
	}
	if string(resp.Payload) != `{"invoice_id":"INV_1"}` {
		t.Errorf("payload = %s", resp.Payload)
	}
}

func TestForwarder_RecordsSpan(t *testing.T) {
	e := newEnv(t, envOptions{})

	_, err := e.fwd.Forward(context.Background(), gateway.Request{
		Service: gateway.BillingService,
		Method:  "ProcessPayment",
		Payload: []byte(`{"invoice_id":"INV_paid"}`),
	})
	if err == nil {
		t.Fatal("expected an error")
	}

	ended := e.spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("spans = %d, want 1", len(ended))
	}
	span := ended[0]
	if span.Name() != observability.SpanForward {
		t.Errorf("name = %s", span.Name())
	}
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[observability.AttrUpstream] != gateway.BillingService {
		t.Errorf("upstream attr = %q", attrs[observability.AttrUpstream])
	}
	if attrs[observability.AttrOutcome] != gateway.OutcomeApplication {
		t.Errorf("outcome attr = %q", attrs[observability.AttrOutcome])
	}
}

func TestGateway_DiscoveryDebug(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(http.MethodGet, "/debug/discovery/billing-service", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	got := decode(t, w)
	if got["selected"] != "10.0.0.7:50052" || got["healthy"] != float64(1) {
		t.Errorf("body = %v", got)
	}

	if w := e.do(http.MethodGet, "/debug/discovery/ghost", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown service status = %d", w.Code)
	}
}
