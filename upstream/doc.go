// Package upstream manages the clients a service holds towards the services
// it depends on.
//
// A Bootstrapper resolves a dependency name through discovery, picks a
// healthy endpoint, dials it and probes it, retrying with backoff until the
// attempt budget runs out. The resulting Handle is published atomically and
// shared by every request. A Caller then invokes the handle with a per-call
// timeout and bounded, idempotency-aware retries. Each attempt leases the
// handle it uses, so invalidating a handle never cuts off calls already
// running on it, and a retry picks up the replacement.
//
//	b := upstream.NewBootstrapper(disc.Lookup(), disc.Selector(), dialer, log,
//	    upstream.WithDependencies(upstream.DependencyConfig{Name: "billing-service"}))
//	caller := upstream.NewCaller(grpcclient.Classify, log,
//	    upstream.OnConnectionLost(func(h upstream.Handle, err error) {
//	        b.Invalidate(h.Service(), h, err)
//	    }))
//
//	acquire := func(ctx context.Context) (upstream.Handle, func(), error) {
//	    return b.Acquire(ctx, "billing-service")
//	}
//	out, err := caller.CallWith(ctx, "billing-service", acquire, "GetInvoice", payload, upstream.Policy{
//	    Timeout: 5 * time.Second, MaxRetries: 2, Idempotent: true,
//	})
//	// errors.Is(err, upstream.ErrBootstrapExhausted) when no client could be built
package upstream
