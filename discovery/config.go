package discovery

import (
	"fmt"
	"net"
	"os"
	"time"
)

// Config holds registry connection, selection and self-registration settings.
type Config struct {
	// Provider selects the backend: "consul" or "static".
	Provider string `yaml:"provider" mapstructure:"provider"`

	// ConsulAddr is the Consul agent address (host:port). When empty it is
	// built from CONSUL_HOST and CONSUL_PORT, then localhost:8500.
	ConsulAddr       string `yaml:"consul_addr" mapstructure:"consul_addr"`
	ConsulScheme     string `yaml:"consul_scheme" mapstructure:"consul_scheme"`
	ConsulToken      string `yaml:"consul_token" mapstructure:"consul_token"`
	ConsulDatacenter string `yaml:"consul_datacenter" mapstructure:"consul_datacenter"`

	// Tag restricts lookups to instances carrying this tag.
	Tag string `yaml:"tag" mapstructure:"tag"`

	// AllowUnchecked treats instances without any health check as healthy.
	AllowUnchecked bool `yaml:"allow_unchecked" mapstructure:"allow_unchecked"`

	Registration RegistrationConfig `yaml:"registration" mapstructure:"registration"`

	// Static lists instances served by the static provider.
	Static []StaticService `yaml:"static" mapstructure:"static"`
}

// RegistrationConfig controls how the local process announces itself.
type RegistrationConfig struct {
	Enabled         bool              `yaml:"enabled" mapstructure:"enabled"`
	ServiceName     string            `yaml:"service_name" mapstructure:"service_name"`
	ServiceID       string            `yaml:"service_id" mapstructure:"service_id"`
	ServiceAddress  string            `yaml:"service_address" mapstructure:"service_address"`
	ServicePort     int               `yaml:"service_port" mapstructure:"service_port"`
	CheckType       CheckType         `yaml:"check_type" mapstructure:"check_type"`
	CheckInterval   time.Duration     `yaml:"check_interval" mapstructure:"check_interval"`
	CheckTimeout    time.Duration     `yaml:"check_timeout" mapstructure:"check_timeout"`
	DeregisterAfter time.Duration     `yaml:"deregister_after" mapstructure:"deregister_after"`
	Tags            []string          `yaml:"tags" mapstructure:"tags"`
	Metadata        map[string]string `yaml:"metadata" mapstructure:"metadata"`
}

// StaticService is one instance served by the static provider.
type StaticService struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Address string `yaml:"address" mapstructure:"address"`
	Port    int    `yaml:"port" mapstructure:"port"`
	// Unchecked registers the instance without any health check.
	Unchecked bool `yaml:"unchecked" mapstructure:"unchecked"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "consul"
	}
	if c.ConsulAddr == "" {
		host := os.Getenv("CONSUL_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("CONSUL_PORT")
		if port == "" {
			port = "8500"
		}
		c.ConsulAddr = net.JoinHostPort(host, port)
	}
	if c.ConsulScheme == "" {
		c.ConsulScheme = "http"
	}

	r := &c.Registration
	if r.CheckType == "" {
		r.CheckType = CheckTCP
	}
	if r.CheckInterval == 0 {
		r.CheckInterval = 10 * time.Second
	}
	if r.CheckTimeout == 0 {
		r.CheckTimeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case "consul", "static":
	default:
		return fmt.Errorf("unsupported discovery provider %q", c.Provider)
	}
	if c.Provider == "consul" && c.ConsulAddr == "" {
		return fmt.Errorf("consul_addr is required when provider is consul")
	}
	if c.Registration.Enabled {
		if c.Registration.ServiceName == "" {
			return fmt.Errorf("registration.service_name is required")
		}
		if c.Registration.ServicePort <= 0 {
			return fmt.Errorf("registration.service_port must be > 0")
		}
		switch c.Registration.CheckType {
		case CheckTCP, CheckGRPC, CheckNone:
		default:
			return fmt.Errorf("unsupported registration.check_type %q", c.Registration.CheckType)
		}
	}
	for i, s := range c.Static {
		if s.Name == "" || s.Address == "" || s.Port <= 0 {
			return fmt.Errorf("static[%d]: name, address and port are required", i)
		}
	}
	return nil
}

// Selector returns the endpoint selector configured by c.
func (c *Config) Selector() Selector {
	return Selector{AllowUnchecked: c.AllowUnchecked}
}
