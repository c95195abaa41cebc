// Command gateway serves the public HTTP API and forwards each request to
// the billing or booking service found through service discovery.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/bookingplatform/bootstrap"
	"github.com/kbukum/bookingplatform/component"
	"github.com/kbukum/bookingplatform/config"
	"github.com/kbukum/bookingplatform/discovery"
	_ "github.com/kbukum/bookingplatform/discovery/consul"
	_ "github.com/kbukum/bookingplatform/discovery/static"
	"github.com/kbukum/bookingplatform/gateway"
	"github.com/kbukum/bookingplatform/grpc/client"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/metrics"
	"github.com/kbukum/bookingplatform/observability"
	"github.com/kbukum/bookingplatform/server"
	"github.com/kbukum/bookingplatform/upstream"
)

func main() {
	var cfg Config
	if err := config.LoadConfig("gateway", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	if err := setup(app); err != nil {
		app.Logger.Fatal("Setup failed", logger.ErrorFields("setup", err))
	}
	if err := app.Run(context.Background()); err != nil {
		app.Logger.Fatal("Gateway exited", logger.ErrorFields("run", err))
	}
}

func setup(app *bootstrap.App[*Config]) error {
	cfg, log := app.Cfg, app.Logger

	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.Tracing, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	shutdownMeter, err := observability.InitMeter(context.Background(), cfg.Metrics, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init meter: %w", err)
	}
	app.OnStop(shutdownTracer, shutdownMeter)

	m := metrics.New()
	disc := discovery.NewComponent(cfg.Discovery, log)

	dialer, err := client.NewDialer(cfg.GRPC, log)
	if err != nil {
		return fmt.Errorf("grpc dialer: %w", err)
	}
	boot := upstream.NewBootstrapper(disc, disc.Selector(), dialer, log,
		upstream.WithMetrics(m),
		upstream.WithDependencies(cfg.Upstreams...),
	)
	caller := upstream.NewCaller(client.Classify, log,
		upstream.WithCallMetrics(m),
		upstream.OnConnectionLost(func(h upstream.Handle, err error) {
			boot.Invalidate(h.Service(), h, err)
		}),
	)
	fwd := gateway.NewForwarder(boot, caller, log, gateway.WithForwardMetrics(m))

	var gwOpts []gateway.Option
	if cfg.Debug {
		gwOpts = append(gwOpts, gateway.WithDiscoveryDebug(disc, disc.Selector()))
	}

	httpSrv := server.New(cfg.HTTP, log)
	httpSrv.ApplyDefaults(cfg.Name, cfg.Version, app.Components.HealthAll, m)
	gateway.New(fwd, log, gwOpts...).Register(httpSrv.GinEngine())

	// discovery before upstreams so warm-up can resolve; HTTP last so no
	// request arrives before the forwarder can serve it.
	for _, c := range []component.Component{disc, upstream.NewComponent(boot, log), server.NewComponent(httpSrv)} {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}
