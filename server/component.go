package server

import (
	"context"

	"github.com/kbukum/bookingplatform/component"
)

const componentName = "http-server"

var _ component.Component = (*ServerComponent)(nil)

// ServerComponent wraps Server to implement component.Component.
type ServerComponent struct {
	server *Server
}

// NewComponent returns a component.Component backed by s.
func NewComponent(s *Server) *ServerComponent {
	return &ServerComponent{server: s}
}

func (sc *ServerComponent) Name() string { return componentName }

func (sc *ServerComponent) Start(ctx context.Context) error {
	return sc.server.Start(ctx)
}

func (sc *ServerComponent) Stop(ctx context.Context) error {
	return sc.server.Stop(ctx)
}

func (sc *ServerComponent) Health(ctx context.Context) component.Health {
	if sc.server.listener == nil {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}
