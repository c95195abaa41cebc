package consul

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/bookingplatform/discovery"
	"github.com/kbukum/bookingplatform/logger"
)

const billingEntries = `[
  {
    "Node": {"Node": "node-1", "Address": "10.0.0.2"},
    "Service": {"ID": "billing-service-1", "Service": "billing-service", "Address": "10.0.0.1", "Port": 50052, "Tags": ["grpc"]},
    "Checks": [
      {"CheckID": "serfHealth", "Name": "Serf Health Status", "Status": "passing"},
      {"CheckID": "service:billing-service-1", "Name": "Service check", "Status": "passing"}
    ]
  },
  {
    "Node": {"Node": "node-2", "Address": "10.0.0.3"},
    "Service": {"ID": "billing-service-2", "Service": "billing-service", "Address": "", "Port": 50053},
    "Checks": [
      {"CheckID": "serfHealth", "Status": "passing"},
      {"CheckID": "service:billing-service-2", "Status": "critical"}
    ]
  }
]`

type fakeAgent struct {
	mu           sync.Mutex
	registered   map[string]any
	deregistered []string
	healthPaths  []string
}

func newFakeAgent(t *testing.T) (*fakeAgent, *httptest.Server) {
	t.Helper()
	fa := &fakeAgent{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health/service/", func(w http.ResponseWriter, r *http.Request) {
		fa.mu.Lock()
		fa.healthPaths = append(fa.healthPaths, r.URL.RequestURI())
		fa.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Consul-Index", "7")
		w.Header().Set("X-Consul-LastContact", "0")
		w.Header().Set("X-Consul-KnownLeader", "true")
		switch strings.TrimPrefix(r.URL.Path, "/v1/health/service/") {
		case "billing-service":
			w.Write([]byte(billingEntries))
		case "broken":
			http.Error(w, "rpc error", http.StatusInternalServerError)
		default:
			w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/v1/agent/service/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		fa.mu.Lock()
		fa.registered = body
		fa.mu.Unlock()
	})
	mux.HandleFunc("/v1/agent/service/deregister/", func(w http.ResponseWriter, r *http.Request) {
		fa.mu.Lock()
		fa.deregistered = append(fa.deregistered, strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/"))
		fa.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fa, srv
}

func newTestProvider(t *testing.T, srv *httptest.Server, tag string) *Provider {
	t.Helper()
	p, err := NewProvider(discovery.Config{
		ConsulAddr:   strings.TrimPrefix(srv.URL, "http://"),
		ConsulScheme: "http",
		Tag:          tag,
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestLookupHealthy_MapsEntriesInOrder(t *testing.T) {
	_, srv := newFakeAgent(t)
	p := newTestProvider(t, srv, "")

	records, err := p.LookupHealthy(context.Background(), "billing-service")
	if err != nil {
		t.Fatalf("LookupHealthy failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.NodeAddress != "10.0.0.2" || first.ServiceAddress != "10.0.0.1" || first.Port != 50052 {
		t.Errorf("unexpected first record %+v", first)
	}
	if first.ServiceID != "billing-service-1" || len(first.Checks) != 2 {
		t.Errorf("unexpected first record %+v", first)
	}
	if records[1].Checks[1].Status != discovery.CheckCritical {
		t.Errorf("expected critical check to be kept, got %+v", records[1].Checks)
	}

	ep, err := discovery.Selector{}.Select(records)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ep.Address() != "10.0.0.1:50052" {
		t.Errorf("expected service address to win, got %s", ep.Address())
	}
}

func TestLookupHealthy_NotFound(t *testing.T) {
	_, srv := newFakeAgent(t)
	p := newTestProvider(t, srv, "")

	_, err := p.LookupHealthy(context.Background(), "payments")
	if !errors.Is(err, discovery.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestLookupHealthy_RegistryError(t *testing.T) {
	_, srv := newFakeAgent(t)
	p := newTestProvider(t, srv, "")

	_, err := p.LookupHealthy(context.Background(), "broken")
	if !errors.Is(err, discovery.ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
}

func TestLookupHealthy_Unreachable(t *testing.T) {
	_, srv := newFakeAgent(t)
	p := newTestProvider(t, srv, "")
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := p.LookupHealthy(ctx, "billing-service")
	if !errors.Is(err, discovery.ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
}

func TestLookupHealthy_DoesNotAskForPassingOnlyAndSendsTag(t *testing.T) {
	fa, srv := newFakeAgent(t)
	p := newTestProvider(t, srv, "grpc")

	if _, err := p.LookupHealthy(context.Background(), "billing-service"); err != nil {
		t.Fatalf("LookupHealthy failed: %v", err)
	}
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.healthPaths) != 1 {
		t.Fatalf("expected one request, got %v", fa.healthPaths)
	}
	uri := fa.healthPaths[0]
	if strings.Contains(uri, "passing") {
		t.Errorf("lookup should not filter server-side: %s", uri)
	}
	if !strings.Contains(uri, "tag=grpc") {
		t.Errorf("expected tag filter in %s", uri)
	}
}

func TestLookupHealthy_EmptyName(t *testing.T) {
	_, srv := newFakeAgent(t)
	p := newTestProvider(t, srv, "")
	if _, err := p.LookupHealthy(context.Background(), ""); !errors.Is(err, discovery.ErrInvalidServiceName) {
		t.Errorf("expected ErrInvalidServiceName, got %v", err)
	}
}

func TestRegisterAndDeregister(t *testing.T) {
	fa, srv := newFakeAgent(t)
	p := newTestProvider(t, srv, "")
	ctx := context.Background()

	err := p.Register(ctx, &discovery.Registration{
		ID:            "billing-service-abc",
		Name:          "billing-service",
		Address:       "10.0.0.1",
		Port:          50052,
		CheckType:     discovery.CheckTCP,
		CheckInterval: 10 * time.Second,
		CheckTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	fa.mu.Lock()
	body := fa.registered
	fa.mu.Unlock()
	if body["ID"] != "billing-service-abc" || body["Name"] != "billing-service" {
		t.Errorf("unexpected registration body %v", body)
	}
	check, _ := body["Check"].(map[string]any)
	if check["TCP"] != "10.0.0.1:50052" || check["Interval"] != "10s" || check["Timeout"] != "5s" {
		t.Errorf("unexpected check %v", check)
	}

	if err := p.Deregister(ctx, "billing-service-abc"); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.deregistered) != 1 || fa.deregistered[0] != "billing-service-abc" {
		t.Errorf("unexpected deregistrations %v", fa.deregistered)
	}
}

func TestAgentCheck(t *testing.T) {
	reg := &discovery.Registration{Address: "h", Port: 1, CheckType: discovery.CheckGRPC, CheckInterval: time.Second, CheckTimeout: time.Second}
	if chk := agentCheck(reg); chk == nil || chk.GRPC != "h:1" || chk.TCP != "" {
		t.Errorf("unexpected grpc check %+v", chk)
	}
	reg.CheckType = discovery.CheckNone
	if chk := agentCheck(reg); chk != nil {
		t.Errorf("expected no check, got %+v", chk)
	}
}
