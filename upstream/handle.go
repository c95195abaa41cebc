package upstream

import (
	"context"

	"github.com/kbukum/bookingplatform/discovery"
)

// Handle is a client bound to one endpoint of one dependency. It is shared
// by every request and must be safe for concurrent use.
type Handle interface {
	Service() string
	Endpoint() discovery.Endpoint
	// Invoke performs one unary call. The payload is passed through opaque.
	Invoke(ctx context.Context, method string, payload []byte) ([]byte, error)
	// Probe performs a cheap liveness check against the endpoint.
	Probe(ctx context.Context) error
	Close() error
}

// Dialer builds a Handle for an endpoint. Dial does not need to connect;
// the bootstrapper probes the handle before publishing it.
type Dialer interface {
	Dial(ctx context.Context, service string, ep discovery.Endpoint) (Handle, error)
}

// Kind classifies a call error for retry decisions.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindConnection
	KindTransient
	KindTerminal
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether an error of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindConnection || k == KindTransient
}

// Classifier maps a transport error to a Kind.
type Classifier func(err error) Kind
