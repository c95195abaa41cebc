package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/bookingplatform/logger"
)

const defaultStopTimeout = 10 * time.Second

type entry struct {
	component Component
	started   bool
}

// Registry starts components in registration order and stops them in reverse.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	lookup  map[string]*entry
	log     *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		lookup: make(map[string]*entry),
		log:    log.WithComponent("components"),
	}
}

// Register adds c. Register dependencies first.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.lookup[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}
	e := &entry{component: c}
	r.entries = append(r.entries, e)
	r.lookup[name] = e
	return nil
}

// StartAll starts every component, stopping at the first failure.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		name := e.component.Name()
		if err := e.component.Start(ctx); err != nil {
			r.log.Error("component start failed", map[string]interface{}{
				"name": name, logger.FieldError: err.Error(),
			})
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		e.started = true
		r.log.Debug("component started", map[string]interface{}{"name": name})
	}
	return nil
}

// StopAll stops started components in reverse order and joins their errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !e.started {
			continue
		}
		name := e.component.Name()
		stopCtx, cancel := context.WithTimeout(ctx, defaultStopTimeout)
		if err := e.component.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", name, err))
			r.log.Error("component stop failed", map[string]interface{}{
				"name": name, logger.FieldError: err.Error(),
			})
		} else {
			r.log.Info("component stopped", map[string]interface{}{"name": name})
		}
		cancel()
		e.started = false
	}
	return errors.Join(errs...)
}

// HealthAll returns the health of every registered component.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.component.Health(ctx))
	}
	return out
}

// Get returns a registered component by name, or nil.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.lookup[name]; ok {
		return e.component
	}
	return nil
}

// All returns the registered components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Component, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.component)
	}
	return out
}
