// Command booking-service serves booking.BookingService over gRPC and
// registers itself with service discovery.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/bookingplatform/booking"
	"github.com/kbukum/bookingplatform/bootstrap"
	"github.com/kbukum/bookingplatform/component"
	"github.com/kbukum/bookingplatform/config"
	"github.com/kbukum/bookingplatform/database"
	"github.com/kbukum/bookingplatform/discovery"
	_ "github.com/kbukum/bookingplatform/discovery/consul"
	_ "github.com/kbukum/bookingplatform/discovery/static"
	grpcserver "github.com/kbukum/bookingplatform/grpc/server"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/metrics"
	"github.com/kbukum/bookingplatform/server"
)

func main() {
	var cfg Config
	if err := config.LoadConfig("booking-service", &cfg); err != nil {
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
		app.Logger.Fatal("Booking service exited", logger.ErrorFields("run", err))
	}
}

func setup(app *bootstrap.App[*Config]) error {
	cfg, log := app.Cfg, app.Logger

	db := database.NewComponent(cfg.Database, log).WithAutoMigrate(booking.Models()...)

	grpcSrv := grpcserver.New(cfg.GRPC, log)
	grpcSrv.Register(booking.NewService(db, log).GRPC())

	// Registration comes last: the instance is announced only once it serves.
	comps := []component.Component{db, grpcSrv}
	if cfg.HTTP.Enabled {
		httpSrv := server.New(cfg.HTTP.Config, log)
		httpSrv.ApplyDefaults(cfg.Name, cfg.Version, app.Components.HealthAll, metrics.New())
		comps = append(comps, server.NewComponent(httpSrv))
	}
	comps = append(comps, discovery.NewComponent(cfg.Discovery, log))

	for _, c := range comps {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}
