// Package static is an in-memory discovery backend. Instances come from
// configuration or from Register calls, and every instance carries a single
// synthetic check whose status can be changed with SetStatus.
package static

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/bookingplatform/discovery"
	"github.com/kbukum/bookingplatform/logger"
)

// Provider implements discovery.Provider in memory.
type Provider struct {
	mu        sync.RWMutex
	instances map[string][]discovery.HealthRecord
}

func init() {
	discovery.RegisterProviderFactory("static", func(cfg discovery.Config, _ *logger.Logger) (discovery.Provider, error) {
		return NewProvider(cfg.Static), nil
	})
}

var _ discovery.Provider = (*Provider)(nil)

// NewProvider creates a Provider pre-populated from services.
func NewProvider(services []discovery.StaticService) *Provider {
	p := &Provider{instances: make(map[string][]discovery.HealthRecord)}
	for i, s := range services {
		rec := discovery.HealthRecord{
			ServiceID:      fmt.Sprintf("%s-%d", s.Name, i),
			ServiceName:    s.Name,
			NodeAddress:    s.Address,
			ServiceAddress: s.Address,
			Port:           s.Port,
		}
		if !s.Unchecked {
			rec.Checks = []discovery.Check{passingCheck(rec.ServiceID)}
		}
		p.instances[s.Name] = append(p.instances[s.Name], rec)
	}
	return p
}

// Add appends a raw record for serviceName.
func (p *Provider) Add(serviceName string, rec discovery.HealthRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[serviceName] = append(p.instances[serviceName], rec)
}

// SetStatus sets the status of every check on the instance with serviceID.
func (p *Provider) SetStatus(serviceID string, status discovery.CheckStatus) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, list := range p.instances {
		for i := range list {
			if list[i].ServiceID != serviceID {
				continue
			}
			checks := slices.Clone(list[i].Checks)
			for j := range checks {
				checks[j].Status = status
			}
			list[i].Checks = checks
			return true
		}
	}
	return false
}

// LookupHealthy returns a copy of the records for serviceName.
func (p *Provider) LookupHealthy(_ context.Context, serviceName string) ([]discovery.HealthRecord, error) {
	if serviceName == "" {
		return nil, discovery.ErrInvalidServiceName
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := p.instances[serviceName]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, serviceName)
	}
	return slices.Clone(list), nil
}

// Register stores reg as a passing instance.
func (p *Provider) Register(_ context.Context, reg *discovery.Registration) error {
	rec := discovery.HealthRecord{
		ServiceID:      reg.ID,
		ServiceName:    reg.Name,
		NodeAddress:    reg.Address,
		ServiceAddress: reg.Address,
		Port:           reg.Port,
		Tags:           reg.Tags,
	}
	if reg.CheckType != discovery.CheckNone {
		rec.Checks = []discovery.Check{passingCheck(reg.ID)}
	}
	p.Add(reg.Name, rec)
	return nil
}

// Deregister removes the instance with serviceID.
func (p *Provider) Deregister(_ context.Context, serviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, list := range p.instances {
		p.instances[name] = slices.DeleteFunc(list, func(r discovery.HealthRecord) bool {
			return r.ServiceID == serviceID
		})
	}
	return nil
}

func (p *Provider) Close() error { return nil }

func passingCheck(serviceID string) discovery.Check {
	return discovery.Check{CheckID: "service:" + serviceID, Name: "static", Status: discovery.CheckPassing}
}
