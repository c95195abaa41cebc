package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/bookingplatform/component"
	"github.com/kbukum/bookingplatform/logger"
)

// App runs a service process: it starts registered components, runs the
// configure callbacks, waits for a shutdown signal and stops everything in
// reverse order. C is the service's config type.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(db)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return nil
//	})
//	app.Run(context.Background())
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults to cfg, validates it and initializes logging.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()

	o := resolveOptions(opts)
	log := o.logger
	if log == nil {
		log = logger.Init(base.Logging, base.Name)
	}

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(log),
		Logger:          log,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	return app, nil
}

// RegisterComponent adds c to the registry. Components start in
// registration order.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback that runs after every component has
// started. Business wiring that needs started infrastructure goes here.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck returns an error naming every component that is not healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts the application, blocks until SIGINT, SIGTERM or ctx ends,
// then shuts down gracefully. A failed startup stops whatever had started.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.WaitForSignal(ctx)
	return a.Shutdown()
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", map[string]interface{}{
		"name":    a.Name,
		"version": a.Version,
	})

	if err := a.Components.StartAll(ctx); err != nil {
		return a.abort(fmt.Errorf("failed to start components: %w", err))
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return a.abort(fmt.Errorf("onStart hook failed: %w", err))
	}
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return a.abort(fmt.Errorf("configuration failed: %w", err))
		}
	}

	// Degraded dependencies are expected at startup; upstreams recover lazily.
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", map[string]interface{}{logger.FieldError: err.Error()})
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return a.abort(fmt.Errorf("onReady hook failed: %w", err))
	}

	names := make([]string, 0)
	for _, c := range a.Components.All() {
		names = append(names, c.Name())
	}
	a.Logger.Info("Application ready", map[string]interface{}{
		"components":          names,
		logger.FieldDuration: time.Since(start).Milliseconds(),
	})
	return nil
}

func (a *App[C]) abort(err error) error {
	if stopErr := a.Shutdown(); stopErr != nil {
		a.Logger.Error("Shutdown after failed startup", map[string]interface{}{logger.FieldError: stopErr.Error()})
	}
	return err
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx ends.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown runs the OnStop hooks and stops every component in reverse
// order within the graceful timeout.
func (a *App[C]) Shutdown() error {
	a.Logger.Info("Shutting down application", map[string]interface{}{
		"timeout": a.gracefulTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", map[string]interface{}{logger.FieldError: err.Error()})
		shutdownErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", map[string]interface{}{logger.FieldError: err.Error()})
		shutdownErr = err
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}
