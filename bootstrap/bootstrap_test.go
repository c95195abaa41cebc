package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/bookingplatform/component"
	"github.com/kbukum/bookingplatform/config"
	"github.com/kbukum/bookingplatform/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.events, ",")
}

type mockComponent struct {
	name     string
	rec      *recorder
	startErr error
	health   component.Health
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.rec.add("start:" + m.name)
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.rec.add("stop:" + m.name)
	return nil
}
func (m *mockComponent) Health(context.Context) component.Health {
	if m.health.Status == "" {
		return component.Health{Name: m.name, Status: component.StatusHealthy}
	}
	return m.health
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "billing-service", Version: "1.0.0"}}
	app, err := NewApp(cfg, WithLogger(logger.NewNop()), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "billing-service" || app.Version != "1.0.0" {
		t.Errorf("app = %s %s", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("defaults not applied: %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != time.Second {
		t.Errorf("graceful timeout = %v", app.gracefulTimeout)
	}

	if _, err := NewApp(&testConfig{}); err == nil {
		t.Error("expected validation error without a name")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(&mockComponent{name: "database", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "grpc-server", rec: rec})

	app.OnStart(func(context.Context) error { rec.add("onStart"); return nil })
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		if a.Cfg.Name != "billing-service" {
			t.Errorf("configure sees %q", a.Cfg.Name)
		}
		rec.add("configure")
		return nil
	})
	app.OnReady(func(context.Context) error { rec.add("onReady"); return nil })
	app.OnStop(func(context.Context) error { rec.add("onStop"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })

	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "start:database,start:grpc-server,onStart,configure,onReady,onStop,stop:grpc-server,stop:database"
	if got := rec.String(); got != want {
		t.Errorf("events = %s\nwant     %s", got, want)
	}
}

func TestRun_StartFailureStopsStarted(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(&mockComponent{name: "database", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "discovery", rec: rec, startErr: errors.New("consul down")})
	_ = app.RegisterComponent(&mockComponent{name: "grpc-server", rec: rec})

	err := app.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "consul down") {
		t.Fatalf("err = %v", err)
	}
	if got, want := rec.String(), "start:database,start:discovery,stop:database"; got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestRun_ConfigureErrorShutsDown(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(&mockComponent{name: "database", rec: rec})
	app.OnConfigure(func(context.Context, *App[*testConfig]) error { return errors.New("bad wiring") })

	if err := app.Run(context.Background()); err == nil {
		t.Fatal("expected configure error")
	}
	if got, want := rec.String(), "start:database,stop:database"; got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("empty registry: %v", err)
	}

	_ = app.RegisterComponent(&mockComponent{name: "database", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "upstreams", rec: rec, health: component.Health{
		Name: "upstreams", Status: component.StatusDegraded, Message: "unavailable: billing-service",
	}})
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "upstreams=degraded(unavailable: billing-service)") {
		t.Errorf("err = %v", err)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	if err := app.RegisterComponent(&mockComponent{name: "database", rec: rec}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := app.RegisterComponent(&mockComponent{name: "database", rec: rec}); err == nil {
		t.Error("expected duplicate error")
	}
}
