package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/bookingplatform/component"
	"github.com/kbukum/bookingplatform/logger"
)

// ProviderFactory builds a Provider from configuration.
type ProviderFactory func(cfg Config, log *logger.Logger) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]ProviderFactory)
)

// RegisterProviderFactory makes a backend available under name.
// Backend packages call it from init.
func RegisterProviderFactory(name string, f ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

func lookupFactory(name string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Component owns the registry provider for a process. On Start it builds the
// provider and, when registration is enabled, announces the local instance;
// on Stop it withdraws that announcement.
type Component struct {
	cfg        Config
	log        *logger.Logger
	provider   Provider
	registered string
	mu         sync.RWMutex
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a discovery component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("discovery")}
}

// NewComponentWithProvider creates a component around an already built provider.
func NewComponentWithProvider(cfg Config, p Provider, log *logger.Logger) *Component {
	c := NewComponent(cfg, log)
	c.provider = p
	return c
}

func (c *Component) Name() string { return "discovery" }

// Lookup returns the provider as a Lookup. It is nil before Start.
func (c *Component) Lookup() Lookup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.provider == nil {
		return nil
	}
	return c.provider
}

// LookupHealthy delegates to the provider, so the component can be handed
// out as a Lookup before Start. Until then lookups fail with
// ErrRegistryUnavailable.
func (c *Component) LookupHealthy(ctx context.Context, serviceName string) ([]HealthRecord, error) {
	l := c.Lookup()
	if l == nil {
		return nil, fmt.Errorf("%w: discovery not started", ErrRegistryUnavailable)
	}
	return l.LookupHealthy(ctx, serviceName)
}

// Selector returns the configured endpoint selector.
func (c *Component) Selector() Selector { return c.cfg.Selector() }

// ServiceID returns the id the local instance was registered under, if any.
func (c *Component) ServiceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

// Start builds the provider and registers the local instance.
func (c *Component) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		f, ok := lookupFactory(c.cfg.Provider)
		if !ok {
			return fmt.Errorf("discovery provider %q not registered", c.cfg.Provider)
		}
		p, err := f(c.cfg, c.log)
		if err != nil {
			return fmt.Errorf("discovery start: %w", err)
		}
		c.provider = p
	}

	if !c.cfg.Registration.Enabled {
		c.log.Info("discovery started", map[string]interface{}{"provider": c.cfg.Provider})
		return nil
	}

	reg, err := c.buildRegistration()
	if err != nil {
		return err
	}
	if err := c.provider.Register(ctx, reg); err != nil {
		return fmt.Errorf("discovery: register self: %w", err)
	}
	c.registered = reg.ID
	c.log.Info("discovery started", map[string]interface{}{
		"provider":   c.cfg.Provider,
		"service_id": reg.ID,
		"address":    reg.Address,
		"port":       reg.Port,
	})
	return nil
}

// Stop deregisters the local instance and closes the provider.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		return nil
	}
	if c.registered != "" {
		if err := c.provider.Deregister(ctx, c.registered); err != nil {
			c.log.Warn("failed to deregister on stop", map[string]interface{}{
				"service_id": c.registered, logger.FieldError: err.Error(),
			})
		}
		c.registered = ""
	}
	return c.provider.Close()
}

// Health reports whether the provider exists and the local instance is registered.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.provider == nil:
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "discovery not initialized"}
	case c.cfg.Registration.Enabled && c.registered == "":
		return component.Health{Name: c.Name(), Status: component.StatusDegraded, Message: "not registered"}
	default:
		return component.Health{Name: c.Name(), Status: component.StatusHealthy}
	}
}

func (c *Component) buildRegistration() (*Registration, error) {
	rc := c.cfg.Registration
	addr := rc.ServiceAddress
	if addr == "" {
		ip, err := localIP()
		if err != nil {
			return nil, fmt.Errorf("discovery: resolve local IP: %w", err)
		}
		addr = ip
	}
	id := rc.ServiceID
	if id == "" {
		id = fmt.Sprintf("%s-%s", rc.ServiceName, uuid.NewString()[:8])
	}
	return &Registration{
		ID:              id,
		Name:            rc.ServiceName,
		Address:         addr,
		Port:            rc.ServicePort,
		Tags:            rc.Tags,
		Metadata:        rc.Metadata,
		CheckType:       rc.CheckType,
		CheckInterval:   rc.CheckInterval,
		CheckTimeout:    rc.CheckTimeout,
		DeregisterAfter: rc.DeregisterAfter,
	}, nil
}

// localIP returns the address of the interface used for outbound traffic.
// UDP dial sends nothing.
func localIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
