package consul

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hashicorp/consul/api"

	"github.com/kbukum/bookingplatform/discovery"
	"github.com/kbukum/bookingplatform/logger"
)

// Provider implements discovery.Provider on top of the Consul HTTP API.
type Provider struct {
	client *api.Client
	cfg    discovery.Config
	log    *logger.Logger
}

func init() {
	discovery.RegisterProviderFactory("consul", func(cfg discovery.Config, log *logger.Logger) (discovery.Provider, error) {
		return NewProvider(cfg, log)
	})
}

var _ discovery.Provider = (*Provider)(nil)

// NewProvider creates a Provider talking to the agent at cfg.ConsulAddr.
func NewProvider(cfg discovery.Config, log *logger.Logger) (*Provider, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.ConsulAddr
	if cfg.ConsulScheme != "" {
		apiCfg.Scheme = cfg.ConsulScheme
	}
	apiCfg.Token = cfg.ConsulToken
	if cfg.ConsulDatacenter != "" {
		apiCfg.Datacenter = cfg.ConsulDatacenter
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &Provider{client: client, cfg: cfg, log: log.WithComponent("consul")}, nil
}

// LookupHealthy returns every registered instance of serviceName with its
// checks. Health filtering is left to discovery.Selector, so passingOnly is
// false here.
func (p *Provider) LookupHealthy(ctx context.Context, serviceName string) ([]discovery.HealthRecord, error) {
	if serviceName == "" {
		return nil, discovery.ErrInvalidServiceName
	}

	opts := (&api.QueryOptions{}).WithContext(ctx)
	entries, _, err := p.client.Health().Service(serviceName, p.cfg.Tag, false, opts)
	if err != nil {
		p.log.Debug("consul health query failed", map[string]interface{}{
			logger.FieldUpstream: serviceName, logger.FieldError: err.Error(),
		})
		return nil, fmt.Errorf("%w: health query for %q: %w", discovery.ErrRegistryUnavailable, serviceName, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, serviceName)
	}

	records := make([]discovery.HealthRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, toHealthRecord(e))
	}
	return records, nil
}

// Register announces reg to the local agent with a TCP or gRPC check.
func (p *Provider) Register(ctx context.Context, reg *discovery.Registration) error {
	asr := &api.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    reg.Tags,
		Meta:    reg.Metadata,
		Check:   agentCheck(reg),
	}

	if err := p.client.Agent().ServiceRegister(asr); err != nil {
		p.log.Error("failed to register service", map[string]interface{}{
			"service_id": reg.ID, logger.FieldError: err.Error(),
		})
		return fmt.Errorf("consul register %q: %w", reg.Name, err)
	}
	p.log.Info("service registered", map[string]interface{}{
		"service_id": reg.ID, "address": reg.Address, "port": reg.Port,
	})
	return nil
}

// Deregister removes the instance with the given id from the local agent.
func (p *Provider) Deregister(ctx context.Context, serviceID string) error {
	if err := p.client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("consul deregister %q: %w", serviceID, err)
	}
	p.log.Info("service deregistered", map[string]interface{}{"service_id": serviceID})
	return nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (p *Provider) Close() error { return nil }

func agentCheck(reg *discovery.Registration) *api.AgentServiceCheck {
	target := net.JoinHostPort(reg.Address, strconv.Itoa(reg.Port))
	chk := &api.AgentServiceCheck{
		Interval: reg.CheckInterval.String(),
		Timeout:  reg.CheckTimeout.String(),
	}
	if reg.DeregisterAfter > 0 {
		chk.DeregisterCriticalServiceAfter = reg.DeregisterAfter.String()
	}
	switch reg.CheckType {
	case discovery.CheckTCP:
		chk.TCP = target
	case discovery.CheckGRPC:
		chk.GRPC = target
	default:
		return nil
	}
	return chk
}

func toHealthRecord(e *api.ServiceEntry) discovery.HealthRecord {
	rec := discovery.HealthRecord{Checks: make([]discovery.Check, 0, len(e.Checks))}
	if e.Node != nil {
		rec.NodeAddress = e.Node.Address
	}
	if e.Service != nil {
		rec.ServiceID = e.Service.ID
		rec.ServiceName = e.Service.Service
		rec.ServiceAddress = e.Service.Address
		rec.Port = e.Service.Port
		rec.Tags = e.Service.Tags
	}
	for _, chk := range e.Checks {
		rec.Checks = append(rec.Checks, discovery.Check{
			CheckID: chk.CheckID,
			Name:    chk.Name,
			Status:  discovery.CheckStatus(chk.Status),
		})
	}
	return rec
}
