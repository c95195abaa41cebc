package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/metrics"
	"github.com/kbukum/bookingplatform/resilience"
)

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithCallMetrics records call attempts and durations.
func WithCallMetrics(m *metrics.Metrics) CallerOption {
	return func(c *Caller) { c.metrics = m }
}

// OnConnectionLost registers a hook that runs when an attempt fails at the
// connection level. The gateway wires it to Bootstrapper.Invalidate.
func OnConnectionLost(fn func(h Handle, err error)) CallerOption {
	return func(c *Caller) { c.onConnLost = fn }
}

// Caller invokes a handle under a Policy: every attempt has its own
// timeout, idempotent calls are retried immediately on timeout, connection
// and transient failures, and application errors are never retried.
type Caller struct {
	classify   Classifier
	log        *logger.Logger
	metrics    *metrics.Metrics
	onConnLost func(h Handle, err error)
}

// NewCaller creates a Caller.
func NewCaller(classify Classifier, log *logger.Logger, opts ...CallerOption) *Caller {
	c := &Caller{classify: classify, log: log.WithComponent("caller")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquirer yields the handle for one call attempt and a func that releases
// it when the attempt is over.
type Acquirer func(ctx context.Context) (Handle, func(), error)

// Fixed returns an Acquirer that always yields h.
func Fixed(h Handle) Acquirer {
	return func(context.Context) (Handle, func(), error) {
		return h, func() {}, nil
	}
}

// Call invokes method on h and returns the response payload.
func (c *Caller) Call(ctx context.Context, h Handle, method string, payload []byte, p Policy) ([]byte, error) {
	return c.CallWith(ctx, h.Service(), Fixed(h), method, payload, p)
}

// CallWith is Call with a handle acquired for every attempt, so a retry
// after the previous handle was invalidated reaches a freshly bootstrapped
// one. An acquire error ends the call and is returned unchanged.
func (c *Caller) CallWith(ctx context.Context, service string, acquire Acquirer, method string, payload []byte, p Policy) ([]byte, error) {
	p.ApplyDefaults()
	start := time.Now()
	defer func() { c.metrics.CallDuration(service, method, time.Since(start)) }()

	var (
		attempts   int
		lastKind   Kind
		timedOut   = true
		acquireErr error
	)
	out, err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts: p.attempts(),
		RetryIf: func(err error) bool {
			return acquireErr == nil && ctx.Err() == nil && p.Idempotent && lastKind.Retryable()
		},
		OnRetry: func(attempt int, err error, _ time.Duration) {
			c.log.Debug("Retrying upstream call", map[string]interface{}{
				logger.FieldUpstream: service,
				logger.FieldMethod:   method,
				logger.FieldAttempt:  attempt,
				"kind":               lastKind.String(),
				logger.FieldError:    err.Error(),
			})
		},
	}, func(attempt int) ([]byte, error) {
		h, release, err := acquire(ctx)
		if err != nil {
			acquireErr = err
			return nil, err
		}
		defer release()

		attempts = attempt
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		out, err := h.Invoke(actx, method, payload)
		if err == nil {
			c.metrics.CallAttempt(service, method, "ok")
			return out, nil
		}

		lastKind = c.kindOf(ctx, actx, err)
		if lastKind != KindTimeout {
			timedOut = false
		}
		c.metrics.CallAttempt(service, method, lastKind.String())
		if lastKind == KindConnection && c.onConnLost != nil {
			c.onConnLost(h, err)
		}
		return nil, err
	})
	if err == nil {
		return out, nil
	}
	if acquireErr != nil {
		return nil, acquireErr
	}

	if ctx.Err() != nil && lastKind != KindTerminal {
		return nil, ctx.Err()
	}
	return nil, &CallError{
		Service:  service,
		Method:   method,
		Kind:     lastKind,
		Attempts: attempts,
		TimedOut: timedOut && lastKind == KindTimeout,
		Err:      err,
	}
}

func (c *Caller) kindOf(parent, attemptCtx context.Context, err error) Kind {
	if parent.Err() != nil {
		return KindCanceled
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	if c.classify == nil {
		return KindTerminal
	}
	return c.classify(err)
}
