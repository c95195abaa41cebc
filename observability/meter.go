package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/bookingplatform/logger"
)

const defaultMeterName = "github.com/kbukum/bookingplatform"

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills zero-valued fields.
func (c *MeterConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *MeterConfig) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("metrics.interval must be non-negative (got: %s)", c.Interval)
	}
	return nil
}

// InitMeter installs a global meter provider exporting over OTLP/HTTP and
// returns its shutdown function. When disabled the global no-op provider
// stays in place.
func InitMeter(ctx context.Context, cfg MeterConfig, service, version, environment string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	cfg.ApplyDefaults()

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(service, version, environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", service,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp.Shutdown, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	if name == "" {
		name = defaultMeterName
	}
	return otel.Meter(name)
}

// RPCMetrics holds instruments for outgoing RPCs.
type RPCMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRPCMetrics creates the RPC instruments on meter.
func NewRPCMetrics(meter metric.Meter) (*RPCMetrics, error) {
	calls, err := meter.Int64Counter("rpc.client.calls",
		metric.WithDescription("Outgoing RPCs by service, method and status code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rpc.client.calls counter: %w", err)
	}
	duration, err := meter.Float64Histogram("rpc.client.duration",
		metric.WithDescription("Duration of outgoing RPCs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rpc.client.duration histogram: %w", err)
	}
	return &RPCMetrics{calls: calls, duration: duration}, nil
}

// Record records one completed RPC.
func (m *RPCMetrics) Record(ctx context.Context, service, method, code string, d time.Duration) {
	m.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
		attribute.String("rpc.grpc.status_code", code),
	))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
	))
}
