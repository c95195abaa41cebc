package main

import (
	"fmt"
	"time"

	"github.com/kbukum/bookingplatform/config"
	"github.com/kbukum/bookingplatform/discovery"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/observability"
	"github.com/kbukum/bookingplatform/server"
	"github.com/kbukum/bookingplatform/upstream"
)

// Config is the gateway process configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	HTTP      server.Config               `yaml:"http" mapstructure:"http"`
	Discovery discovery.Config            `yaml:"discovery" mapstructure:"discovery"`
	GRPC      grpccfg.ClientConfig        `yaml:"grpc" mapstructure:"grpc"`
	Upstreams []upstream.DependencyConfig `yaml:"upstreams" mapstructure:"upstreams"`
	Tracing   observability.TracerConfig  `yaml:"tracing" mapstructure:"tracing"`
	Metrics   observability.MeterConfig   `yaml:"metrics" mapstructure:"metrics"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "api-gateway"
	}
	c.ServiceConfig.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.GRPC.ApplyDefaults()
	c.Tracing.ApplyDefaults()
	c.Metrics.ApplyDefaults()

	if c.GRPC.Services == nil {
		c.GRPC.Services = map[string]string{
			"billing-service": "billing.BillingService",
			"booking-service": "booking.BookingService",
		}
	}
	if len(c.Upstreams) == 0 {
		c.Upstreams = []upstream.DependencyConfig{
			{Name: "billing-service", Exponential: true, FailureCooldown: 5 * time.Second},
			{Name: "booking-service", Exponential: true, FailureCooldown: 5 * time.Second},
		}
	}
	for i := range c.Upstreams {
		c.Upstreams[i].ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.GRPC.Validate(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Upstreams))
	for i := range c.Upstreams {
		if err := c.Upstreams[i].Validate(); err != nil {
			return fmt.Errorf("upstreams[%d]: %w", i, err)
		}
		if seen[c.Upstreams[i].Name] {
			return fmt.Errorf("upstreams[%d]: duplicate name %q", i, c.Upstreams[i].Name)
		}
		seen[c.Upstreams[i].Name] = true
	}
	return nil
}
