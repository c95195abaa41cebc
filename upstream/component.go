package upstream

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/bookingplatform/component"
	"github.com/kbukum/bookingplatform/logger"
)

var _ component.Component = (*Component)(nil)

// Component runs the Bootstrapper inside the application lifecycle. Start
// bootstraps every configured dependency in parallel but never fails: a
// dependency that is not up yet is bootstrapped again on first use.
type Component struct {
	b   *Bootstrapper
	log *logger.Logger
}

// NewComponent wraps b.
func NewComponent(b *Bootstrapper, log *logger.Logger) *Component {
	return &Component{b: b, log: log.WithComponent("upstreams")}
}

// Bootstrapper returns the wrapped bootstrapper.
func (c *Component) Bootstrapper() *Bootstrapper { return c.b }

func (c *Component) Name() string { return "upstreams" }

func (c *Component) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range c.b.Names() {
		g.Go(func() error {
			if _, err := c.b.Get(gctx, name); err != nil {
				c.log.Warn("Upstream not available at startup", map[string]interface{}{
					logger.FieldUpstream: name,
					logger.FieldError:    err.Error(),
				})
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Component) Stop(_ context.Context) error {
	return c.b.Close()
}

// Health is degraded while any dependency is in the Failed phase.
func (c *Component) Health(_ context.Context) component.Health {
	var failed []string
	for _, name := range c.b.Names() {
		if c.b.State(name).Phase == PhaseFailed {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusDegraded,
			Message: fmt.Sprintf("unavailable: %s", strings.Join(failed, ", ")),
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}
