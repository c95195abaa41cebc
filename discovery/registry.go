package discovery

import (
	"context"
	"time"
)

// CheckType selects how the registry probes a registered instance.
type CheckType string

const (
	CheckTCP  CheckType = "tcp"
	CheckGRPC CheckType = "grpc"
	CheckNone CheckType = "none"
)

// Registration describes the local instance announced to the registry.
type Registration struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Tags     []string
	Metadata map[string]string

	CheckType       CheckType
	CheckInterval   time.Duration
	CheckTimeout    time.Duration
	DeregisterAfter time.Duration
}

// Registry registers and deregisters service instances.
type Registry interface {
	Register(ctx context.Context, reg *Registration) error
	Deregister(ctx context.Context, serviceID string) error
}
