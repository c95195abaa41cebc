package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/bookingplatform/logger"
)

// ServiceConfig contains the fields every service process needs.
// Service configs embed it:
//
//	type GatewayConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    HTTP server.Config   `yaml:"http" mapstructure:"http"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the embedded ServiceConfig.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults fills unset fields. Embedding structs call it first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the base fields. Embedding structs call it first.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	envs := []string{"development", "staging", "production"}
	if !slices.Contains(envs, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", envs, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
