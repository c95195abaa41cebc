package grpc

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// KeepaliveConfig holds keepalive settings for gRPC connections.
type KeepaliveConfig struct {
	Time                time.Duration `yaml:"time" mapstructure:"time"`
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	PermitWithoutStream bool          `yaml:"permit_without_stream" mapstructure:"permit_without_stream"`
}

// TLSConfig enables TLS on client connections.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	CAFile     string `yaml:"ca_file" mapstructure:"ca_file"`
	ServerName string `yaml:"server_name" mapstructure:"server_name"`
}

// ClientConfig configures connections made to upstream services.
type ClientConfig struct {
	MaxRecvMsgSize int             `yaml:"max_recv_msg_size" mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int             `yaml:"max_send_msg_size" mapstructure:"max_send_msg_size"`
	Keepalive      KeepaliveConfig `yaml:"keepalive" mapstructure:"keepalive"`
	TLS            TLSConfig       `yaml:"tls" mapstructure:"tls"`
	// CallTimeout bounds calls made without a deadline. Zero disables it.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	// Services maps a registry service name to the gRPC service it serves,
	// e.g. billing-service -> billing.BillingService.
	Services map[string]string `yaml:"services" mapstructure:"services"`
}

// ServerConfig configures a gRPC listener.
type ServerConfig struct {
	Host           string          `yaml:"host" mapstructure:"host"`
	Port           int             `yaml:"port" mapstructure:"port"`
	MaxRecvMsgSize int             `yaml:"max_recv_msg_size" mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int             `yaml:"max_send_msg_size" mapstructure:"max_send_msg_size"`
	Keepalive      KeepaliveConfig `yaml:"keepalive" mapstructure:"keepalive"`
}

const (
	defaultMaxMsgSize       = 4 * 1024 * 1024
	defaultKeepaliveTime    = 30 * time.Second
	defaultKeepaliveTimeout = 10 * time.Second
)

// ApplyDefaults fills zero-valued fields.
func (c *ClientConfig) ApplyDefaults() {
	if c.MaxRecvMsgSize == 0 {
		c.MaxRecvMsgSize = defaultMaxMsgSize
	}
	if c.MaxSendMsgSize == 0 {
		c.MaxSendMsgSize = defaultMaxMsgSize
	}
	if c.Keepalive.Time == 0 {
		c.Keepalive.Time = defaultKeepaliveTime
	}
	if c.Keepalive.Timeout == 0 {
		c.Keepalive.Timeout = defaultKeepaliveTimeout
	}
}

// Validate checks the client configuration.
func (c *ClientConfig) Validate() error {
	if c.MaxRecvMsgSize <= 0 || c.MaxSendMsgSize <= 0 {
		return fmt.Errorf("grpc: message size limits must be positive")
	}
	return nil
}

// ServiceFor returns the gRPC service name for a registry service name,
// falling back to the registry name itself.
func (c *ClientConfig) ServiceFor(registryName string) string {
	if s, ok := c.Services[registryName]; ok && s != "" {
		return s
	}
	return registryName
}

// ApplyDefaults fills zero-valued fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.MaxRecvMsgSize == 0 {
		c.MaxRecvMsgSize = defaultMaxMsgSize
	}
	if c.MaxSendMsgSize == 0 {
		c.MaxSendMsgSize = defaultMaxMsgSize
	}
	if c.Keepalive.Time == 0 {
		c.Keepalive.Time = 2 * time.Hour
	}
	if c.Keepalive.Timeout == 0 {
		c.Keepalive.Timeout = 20 * time.Second
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("grpc: port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
