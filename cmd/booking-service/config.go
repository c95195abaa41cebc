package main

import (
	"fmt"

	"github.com/kbukum/bookingplatform/config"
	"github.com/kbukum/bookingplatform/database"
	"github.com/kbukum/bookingplatform/discovery"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/server"
)

// Config is the booking service process configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	GRPC      grpccfg.ServerConfig `yaml:"grpc" mapstructure:"grpc"`
	HTTP      HTTPConfig           `yaml:"http" mapstructure:"http"`
	Database  database.Config      `yaml:"database" mapstructure:"database"`
	Discovery discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
}

// HTTPConfig configures the optional /health and /metrics listener.
type HTTPConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	server.Config `yaml:",inline" mapstructure:",squash"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "booking-service"
	}
	c.ServiceConfig.ApplyDefaults()
	if c.GRPC.Port == 0 {
		c.GRPC.Port = 50051
	}
	c.GRPC.ApplyDefaults()
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8081
	}
	c.HTTP.ApplyDefaults()
	if c.Database.DSN == "" {
		c.Database.DSN = "booking.db"
	}
	c.Database.ApplyDefaults()

	r := &c.Discovery.Registration
	if r.ServiceName == "" {
		r.ServiceName = c.Name
	}
	if r.ServicePort == 0 {
		r.ServicePort = c.GRPC.Port
	}
	if r.CheckType == "" {
		r.CheckType = discovery.CheckGRPC
	}
	c.Discovery.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.GRPC.Validate(); err != nil {
		return err
	}
	if c.HTTP.Enabled {
		if err := c.HTTP.Validate(); err != nil {
			return err
		}
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	return nil
}
