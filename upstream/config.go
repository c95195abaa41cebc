package upstream

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kbukum/bookingplatform/discovery"
	"github.com/kbukum/bookingplatform/resilience"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 2 * time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultProbeTimeout = 3 * time.Second
)

// DependencyConfig configures how one dependency is bootstrapped.
type DependencyConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	// Exponential doubles the delay after each failed attempt, up to MaxDelay.
	Exponential bool          `yaml:"exponential" mapstructure:"exponential"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	// Probe is a pointer so an unset value can default to true.
	Probe        *bool         `yaml:"probe" mapstructure:"probe"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	// FailureCooldown makes lookups fail fast with the last bootstrap error
	// for this long after a pipeline failed. Zero re-bootstraps on every miss.
	FailureCooldown time.Duration `yaml:"failure_cooldown" mapstructure:"failure_cooldown"`
	// StaticAddress is a host:port used only as a degraded fallback when
	// bootstrap is exhausted.
	StaticAddress string `yaml:"static_address" mapstructure:"static_address"`
	// DefaultPolicy applies to methods without an explicit policy.
	DefaultPolicy Policy `yaml:"default_policy" mapstructure:"default_policy"`
	// Policies holds per-method call policies keyed by method name.
	Policies map[string]Policy `yaml:"policies" mapstructure:"policies"`
}

// ApplyDefaults fills zero-valued fields.
func (c *DependencyConfig) ApplyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Probe == nil {
		probe := true
		c.Probe = &probe
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	c.DefaultPolicy.ApplyDefaults()
	for name, p := range c.Policies {
		p.ApplyDefaults()
		c.Policies[name] = p
	}
}

// Validate checks the configuration.
func (c *DependencyConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("upstream: name is required")
	}
	if c.StaticAddress != "" {
		if _, err := discovery.ParseEndpoint(c.StaticAddress); err != nil {
			return fmt.Errorf("upstream %s: static_address: %w", c.Name, err)
		}
	}
	if err := c.DefaultPolicy.Validate(); err != nil {
		return fmt.Errorf("upstream %s: default_policy: %w", c.Name, err)
	}
	for method, p := range c.Policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("upstream %s: policies.%s: %w", c.Name, method, err)
		}
	}
	return nil
}

// ProbeEnabled reports whether handles are probed before publication.
func (c *DependencyConfig) ProbeEnabled() bool {
	return c.Probe == nil || *c.Probe
}

// PolicyFor returns the call policy for method.
func (c *DependencyConfig) PolicyFor(method string) Policy {
	if p, ok := c.Policies[method]; ok {
		return p
	}
	return c.DefaultPolicy
}

func (c *DependencyConfig) backOff() backoff.BackOff {
	if c.Exponential {
		return resilience.ExponentialBackOff(c.BaseDelay, c.MaxDelay, 2, 0)
	}
	return resilience.ConstantBackOff(c.BaseDelay)
}

// Policy bounds a single call: each attempt gets Timeout, failed attempts
// are retried up to MaxRetries extra times, and only Idempotent calls are
// ever retried.
type Policy struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	Idempotent bool          `yaml:"idempotent" mapstructure:"idempotent"`
}

// ApplyDefaults fills a zero timeout.
func (p *Policy) ApplyDefaults() {
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	return nil
}

// attempts returns the total number of attempts the policy allows.
func (p Policy) attempts() int {
	if !p.Idempotent {
		return 1
	}
	return 1 + p.MaxRetries
}
