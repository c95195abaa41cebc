package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
)

// Lookup errors. Callers match them with errors.Is.
var (
	ErrInvalidServiceName = errors.New("service name must not be empty")
	// ErrRegistryUnavailable means the registry could not be queried at all.
	ErrRegistryUnavailable = errors.New("service registry unavailable")
	// ErrServiceNotFound means the registry answered but knows no instance of the service.
	ErrServiceNotFound = errors.New("service not found")
	// ErrNoHealthyEndpoint means instances exist but none of them passes all of its checks.
	ErrNoHealthyEndpoint = errors.New("no healthy endpoint")
)

// CheckStatus is the status a registry reports for one health check.
type CheckStatus string

const (
	CheckPassing     CheckStatus = "passing"
	CheckWarning     CheckStatus = "warning"
	CheckCritical    CheckStatus = "critical"
	CheckMaintenance CheckStatus = "maintenance"
)

// Check is a single health check attached to a service instance.
type Check struct {
	CheckID string      `json:"check_id"`
	Name    string      `json:"name,omitempty"`
	Status  CheckStatus `json:"status"`
}

// HealthRecord is one registry entry for a service instance: where it runs
// and the current status of every check attached to it.
type HealthRecord struct {
	ServiceID      string   `json:"service_id,omitempty"`
	ServiceName    string   `json:"service_name,omitempty"`
	NodeAddress    string   `json:"node_address"`
	ServiceAddress string   `json:"service_address,omitempty"`
	Port           int      `json:"port"`
	Tags           []string `json:"tags,omitempty"`
	Checks         []Check  `json:"checks"`
}

// Host returns the address callers should dial: the service-level address
// when the instance registered one, the node address otherwise.
func (r HealthRecord) Host() string {
	if r.ServiceAddress != "" {
		return r.ServiceAddress
	}
	return r.NodeAddress
}

// Endpoint is a dialable host and port. It is comparable.
type Endpoint struct {
	Host string
	Port int
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string { return e.Address() }

// IsZero reports whether e is the zero Endpoint.
func (e Endpoint) IsZero() bool { return e.Host == "" && e.Port == 0 }

// ParseEndpoint parses a host:port string.
func ParseEndpoint(addr string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, errors.New("invalid port in " + strconv.Quote(addr))
	}
	return Endpoint{Host: host, Port: port}, nil
}

// Lookup queries a registry for every instance of a service together with
// its check statuses. Implementations do not filter by health and do not
// cache; the returned slice keeps registry order.
type Lookup interface {
	LookupHealthy(ctx context.Context, serviceName string) ([]HealthRecord, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, serviceName string) ([]HealthRecord, error)

func (f LookupFunc) LookupHealthy(ctx context.Context, serviceName string) ([]HealthRecord, error) {
	return f(ctx, serviceName)
}

// Provider is a registry backend usable both for lookups and for
// registering the local process.
type Provider interface {
	Lookup
	Registry
	Close() error
}
