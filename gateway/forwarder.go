package gateway

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/metrics"
	"github.com/kbukum/bookingplatform/observability"
	"github.com/kbukum/bookingplatform/upstream"
)

// Request is one call to forward. The payload is never inspected.
type Request struct {
	Service string
	Method  string
	Payload []byte
	// Policy is used when the upstream configuration has no policy for
	// Method. Nil falls back to the upstream's default policy.
	Policy *upstream.Policy
}

// Response carries the upstream's payload unchanged.
type Response struct {
	Payload []byte
	// Degraded is set when the call went to the static fallback address.
	Degraded bool
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithForwardMetrics records one outcome per forward.
func WithForwardMetrics(m *metrics.Metrics) ForwarderOption {
	return func(f *Forwarder) { f.metrics = m }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) ForwarderOption {
	return func(f *Forwarder) { f.tracer = t }
}

// Forwarder sends requests to upstreams through the bootstrapper and the
// resilient caller, and translates failures for HTTP clients.
type Forwarder struct {
	boot    *upstream.Bootstrapper
	caller  *upstream.Caller
	log     *logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewForwarder creates a Forwarder.
func NewForwarder(boot *upstream.Bootstrapper, caller *upstream.Caller, log *logger.Logger, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		boot:   boot,
		caller: caller,
		log:    log.WithComponent("forwarder"),
		tracer: observability.Tracer(""),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward performs req. Errors are always *errors.AppError values safe to
// return to HTTP clients; the internal cause is logged.
func (f *Forwarder) Forward(ctx context.Context, req Request) (*Response, error) {
	ctx, span := f.tracer.Start(ctx, observability.SpanForward,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(observability.AttrUpstream, req.Service),
			attribute.String(observability.AttrRPCMethod, req.Method),
		))
	defer span.End()

	start := time.Now()
	resp, err := f.forward(ctx, req)
	appErr, outcome := translate(err)

	span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
	f.metrics.Forward(req.Service, req.Method, outcome)

	fields := map[string]interface{}{
		logger.FieldUpstream: req.Service,
		logger.FieldMethod:   req.Method,
		logger.FieldDuration: time.Since(start).Milliseconds(),
		"outcome":            outcome,
	}
	if err != nil {
		var callErr *upstream.CallError
		if errors.As(err, &callErr) {
			span.SetAttributes(attribute.Int(observability.AttrAttempts, callErr.Attempts))
			fields[logger.FieldAttempt] = callErr.Attempts
		}
		observability.SetSpanError(span, err, string(appErr.Code))
		fields[logger.FieldError] = err.Error()
		if outcome == OutcomeApplication {
			f.log.WithContext(ctx).Info("Upstream rejected request", fields)
		} else {
			f.log.WithContext(ctx).Warn("Forward failed", fields)
		}
		return nil, appErr
	}
	if resp.Degraded {
		fields["degraded"] = true
	}
	f.log.WithContext(ctx).Debug("Forwarded", fields)
	return resp, nil
}

func (f *Forwarder) forward(ctx context.Context, req Request) (*Response, error) {
	var degraded bool
	out, err := f.caller.CallWith(ctx, req.Service, f.acquirer(req.Service, &degraded), req.Method, req.Payload, f.policyFor(req))
	if err != nil {
		return nil, err
	}
	return &Response{Payload: out, Degraded: degraded}, nil
}

// acquirer leases the published handle for each attempt, bootstrapping when
// needed. When bootstrap is exhausted and a static address is configured,
// the fallback handle is used instead and *degraded is set.
func (f *Forwarder) acquirer(service string, degraded *bool) upstream.Acquirer {
	return func(ctx context.Context) (upstream.Handle, func(), error) {
		h, release, err := f.boot.Acquire(ctx, service)
		if err == nil {
			*degraded = false
			return h, release, nil
		}
		if !errors.Is(err, upstream.ErrBootstrapExhausted) {
			return nil, nil, err
		}
		fb, ferr := f.boot.Fallback(ctx, service)
		if ferr != nil {
			if !errors.Is(ferr, upstream.ErrNoFallback) {
				f.log.Warn("Fallback unavailable", logger.ErrorFields("fallback", ferr))
			}
			return nil, nil, err
		}
		*degraded = true
		return fb, func() {}, nil
	}
}

func (f *Forwarder) policyFor(req Request) upstream.Policy {
	cfg := f.boot.Config(req.Service)
	if p, ok := cfg.Policies[req.Method]; ok {
		return p
	}
	if req.Policy != nil {
		return *req.Policy
	}
	return cfg.DefaultPolicy
}
