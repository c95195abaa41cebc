package upstream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/bookingplatform/discovery"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/metrics"
	"github.com/kbukum/bookingplatform/resilience"
)

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithMetrics records bootstrap attempts and readiness.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bootstrapper) { b.metrics = m }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(b *Bootstrapper) { b.sleep = sleep }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bootstrapper) { b.now = now }
}

// WithDependencies configures dependencies up front.
func WithDependencies(deps ...DependencyConfig) Option {
	return func(b *Bootstrapper) {
		for _, d := range deps {
			b.Configure(d)
		}
	}
}

// published is a handle in a dependency's slot plus the calls currently
// holding it. A retired handle is closed when its last lease is released.
type published struct {
	handle Handle

	mu      sync.Mutex
	leases  int
	retired bool
}

func (p *published) lease() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retired {
		return false
	}
	p.leases++
	return true
}

func (p *published) release() error {
	p.mu.Lock()
	p.leases--
	closeNow := p.retired && p.leases == 0
	p.mu.Unlock()
	if closeNow {
		return p.handle.Close()
	}
	return nil
}

// retire marks p as no longer published. The handle is closed now if no
// call holds it, otherwise by the last release.
func (p *published) retire() error {
	p.mu.Lock()
	if p.retired {
		p.mu.Unlock()
		return nil
	}
	p.retired = true
	closeNow := p.leases == 0
	p.mu.Unlock()
	if closeNow {
		return p.handle.Close()
	}
	return nil
}

type dependency struct {
	cfg  DependencyConfig
	slot atomic.Pointer[published]

	mu       sync.Mutex
	state    State
	lastFail time.Time
	lastErr  error
	fallback Handle
}

func (d *dependency) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Bootstrapper turns a dependency name into a live client handle:
// lookup, select, dial and probe, retried with backoff. One pipeline runs
// per dependency at a time; concurrent callers share its outcome. A handle
// is published only after its pipeline succeeded, so readers never observe
// a half-built client.
type Bootstrapper struct {
	lookup   discovery.Lookup
	selector discovery.Selector
	dialer   Dialer
	log      *logger.Logger
	metrics  *metrics.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	mu   sync.RWMutex
	deps map[string]*dependency

	flights singleflight.Group
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// NewBootstrapper creates a Bootstrapper.
func NewBootstrapper(lookup discovery.Lookup, sel discovery.Selector, dialer Dialer, log *logger.Logger, opts ...Option) *Bootstrapper {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bootstrapper{
		lookup:   lookup,
		selector: sel,
		dialer:   dialer,
		log:      log.WithComponent("upstream"),
		sleep:    resilience.Sleep,
		now:      time.Now,
		deps:     make(map[string]*dependency),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Configure registers or replaces the configuration of a dependency. It does
// not touch an already published handle.
func (b *Bootstrapper) Configure(cfg DependencyConfig) {
	cfg.ApplyDefaults()
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.deps[cfg.Name]; ok {
		d.mu.Lock()
		d.cfg = cfg
		d.mu.Unlock()
		return
	}
	b.deps[cfg.Name] = &dependency{cfg: cfg}
}

// Names returns the configured dependency names, sorted.
func (b *Bootstrapper) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.deps))
	for name := range b.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the effective configuration of a dependency. Unknown
// names get the defaults and are not added.
func (b *Bootstrapper) Config(name string) DependencyConfig {
	b.mu.RLock()
	d, ok := b.deps[name]
	b.mu.RUnlock()
	if !ok {
		cfg := DependencyConfig{Name: name}
		cfg.ApplyDefaults()
		return cfg
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// State reports where the dependency is in its bootstrap state machine.
func (b *Bootstrapper) State(name string) State {
	b.mu.RLock()
	d, ok := b.deps[name]
	b.mu.RUnlock()
	if !ok {
		return State{Phase: PhaseUnstarted}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Get returns the published handle for name, bootstrapping it first if
// none is published. The handle is closed as soon as it is invalidated;
// calls that must survive another caller's invalidation use Acquire.
func (b *Bootstrapper) Get(ctx context.Context, name string) (Handle, error) {
	if name == "" {
		return nil, discovery.ErrInvalidServiceName
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if p := b.dependency(name).slot.Load(); p != nil {
		return p.handle, nil
	}
	return b.Bootstrap(ctx, name)
}

// Acquire is Get with a lease: the handle stays open until release is
// called, even if it is invalidated in between. release may be called more
// than once.
func (b *Bootstrapper) Acquire(ctx context.Context, name string) (Handle, func(), error) {
	if name == "" {
		return nil, nil, discovery.ErrInvalidServiceName
	}
	for {
		if b.closed.Load() {
			return nil, nil, ErrClosed
		}
		d := b.dependency(name)
		p := d.slot.Load()
		if p == nil {
			var err error
			if p, err = b.publish(ctx, name, d); err != nil {
				return nil, nil, err
			}
		}
		// A failed lease means p was retired after the load; the slot has
		// moved on, so look again.
		if p.lease() {
			var once sync.Once
			return p.handle, func() {
				once.Do(func() {
					if err := p.release(); err != nil {
						b.log.Debug("Closing stale client failed", logger.ErrorFields("close", err))
					}
				})
			}, nil
		}
	}
}

// Bootstrap runs the bootstrap pipeline for name, or joins the one already
// running. The pipeline is detached from ctx: a caller whose ctx ends stops
// waiting, but the pipeline keeps going for the others and is only stopped
// by Close. If a handle is already published it is returned as is.
func (b *Bootstrapper) Bootstrap(ctx context.Context, name string) (Handle, error) {
	if name == "" {
		return nil, discovery.ErrInvalidServiceName
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}
	p, err := b.publish(ctx, name, b.dependency(name))
	if err != nil {
		return nil, err
	}
	return p.handle, nil
}

func (b *Bootstrapper) publish(ctx context.Context, name string, d *dependency) (*published, error) {
	if err := b.coolingDown(d); err != nil {
		return nil, err
	}
	ch := b.flights.DoChan(name, func() (interface{}, error) {
		return b.run(d)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*published), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate clears the published handle of name if it is still stale.
// The next Get bootstraps again. The handle is closed once no leased call
// holds it. It reports whether the slot was cleared; a handle that was
// already replaced is left alone.
func (b *Bootstrapper) Invalidate(name string, stale Handle, reason error) bool {
	b.mu.RLock()
	d, ok := b.deps[name]
	b.mu.RUnlock()
	if !ok || stale == nil {
		return false
	}
	d.mu.Lock()
	p := d.slot.Load()
	if p == nil || p.handle != stale || !d.slot.CompareAndSwap(p, nil) {
		d.mu.Unlock()
		return false
	}
	d.state = State{Phase: PhaseUnstarted, Err: reason, Since: b.now()}
	d.mu.Unlock()

	fields := map[string]interface{}{
		logger.FieldUpstream: name,
		logger.FieldEndpoint: stale.Endpoint().Address(),
	}
	if reason != nil {
		fields[logger.FieldError] = reason.Error()
	}
	b.log.Warn("Invalidating upstream client", fields)

	b.metrics.UpstreamReady(name, false)
	if err := p.retire(); err != nil {
		b.log.Debug("Closing stale client failed", logger.ErrorFields("close", err))
	}
	return true
}

// Fallback returns a handle for the dependency's static address. The handle
// is built once and reused; it is not probed.
func (b *Bootstrapper) Fallback(ctx context.Context, name string) (Handle, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	b.mu.RLock()
	d, ok := b.deps[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFallback, name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fallback != nil {
		return d.fallback, nil
	}
	if d.cfg.StaticAddress == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoFallback, name)
	}
	ep, err := discovery.ParseEndpoint(d.cfg.StaticAddress)
	if err != nil {
		return nil, fmt.Errorf("%s fallback: %w", name, err)
	}
	h, err := b.dialer.Dial(ctx, name, ep)
	if err != nil {
		return nil, fmt.Errorf("%s fallback: %w", name, err)
	}
	d.fallback = h
	b.log.Warn("Using static fallback address", map[string]interface{}{
		logger.FieldUpstream: name,
		logger.FieldEndpoint: ep.Address(),
	})
	return h, nil
}

// Close stops running pipelines and closes every handle. Further calls
// return ErrClosed.
func (b *Bootstrapper) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()

	b.mu.RLock()
	deps := make([]*dependency, 0, len(b.deps))
	for _, d := range b.deps {
		deps = append(deps, d)
	}
	b.mu.RUnlock()

	var errs []error
	for _, d := range deps {
		if p := d.slot.Swap(nil); p != nil {
			if err := p.retire(); err != nil {
				errs = append(errs, err)
			}
		}
		d.mu.Lock()
		if d.fallback != nil {
			if err := d.fallback.Close(); err != nil {
				errs = append(errs, err)
			}
			d.fallback = nil
		}
		d.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (b *Bootstrapper) dependency(name string) *dependency {
	b.mu.RLock()
	d, ok := b.deps[name]
	b.mu.RUnlock()
	if ok {
		return d
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.deps[name]; ok {
		return d
	}
	cfg := DependencyConfig{Name: name}
	cfg.ApplyDefaults()
	d = &dependency{cfg: cfg}
	b.deps[name] = d
	return d
}

func (b *Bootstrapper) coolingDown(d *dependency) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.FailureCooldown <= 0 || d.lastErr == nil {
		return nil
	}
	if b.now().Sub(d.lastFail) < d.cfg.FailureCooldown {
		return d.lastErr
	}
	return nil
}

// run is the body of one pipeline. It executes inside the single flight.
func (b *Bootstrapper) run(d *dependency) (*published, error) {
	if p := d.slot.Load(); p != nil {
		return p, nil
	}

	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()

	log := b.log.WithFields(map[string]interface{}{logger.FieldUpstream: cfg.Name})
	var attempts []Attempt

	h, err := resilience.Retry(b.ctx, resilience.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BackOff:     cfg.backOff(),
		RetryIf:     func(error) bool { return b.ctx.Err() == nil },
		Sleep:       b.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("Bootstrap attempt failed, retrying", map[string]interface{}{
				logger.FieldAttempt: attempt,
				"max_attempts":      cfg.MaxAttempts,
				"delay_ms":          delay.Milliseconds(),
				logger.FieldError:   err.Error(),
			})
		},
	}, func(attempt int) (Handle, error) {
		d.setState(State{Phase: PhaseAttempting, Attempt: attempt, Since: b.now()})
		h, a, err := b.attempt(cfg, attempt)
		if err != nil {
			attempts = append(attempts, a)
			b.metrics.BootstrapAttempt(cfg.Name, string(a.Stage), false)
			return nil, err
		}
		b.metrics.BootstrapAttempt(cfg.Name, "", true)
		return h, nil
	})

	if err != nil {
		if b.ctx.Err() != nil {
			d.setState(State{Phase: PhaseFailed, Attempt: len(attempts), Err: ErrClosed, Since: b.now()})
			return nil, ErrClosed
		}
		berr := &BootstrapError{Service: cfg.Name, Attempts: attempts, Err: err}
		now := b.now()
		d.mu.Lock()
		d.state = State{Phase: PhaseFailed, Attempt: len(attempts), Err: berr, Since: now}
		d.lastFail, d.lastErr = now, berr
		d.mu.Unlock()
		b.metrics.UpstreamReady(cfg.Name, false)
		log.Error("Bootstrap exhausted", map[string]interface{}{
			"attempts":        len(attempts),
			logger.FieldError: err.Error(),
		})
		return nil, berr
	}

	// The slot and the state change together so Invalidate never sees a
	// published handle with a stale phase, or the reverse.
	p := &published{handle: h}
	attempt := len(attempts) + 1
	d.mu.Lock()
	d.slot.Store(p)
	d.state = State{Phase: PhaseReady, Attempt: attempt, Endpoint: h.Endpoint(), Since: b.now()}
	d.lastErr = nil
	d.mu.Unlock()

	if b.closed.Load() {
		// Close ran while this pipeline was finishing; whoever clears the
		// slot retires the handle.
		d.mu.Lock()
		if d.slot.CompareAndSwap(p, nil) {
			_ = p.retire()
		}
		d.state = State{Phase: PhaseFailed, Attempt: attempt, Err: ErrClosed, Since: b.now()}
		d.mu.Unlock()
		return nil, ErrClosed
	}

	b.metrics.UpstreamReady(cfg.Name, true)
	log.Info("Upstream client ready", map[string]interface{}{
		logger.FieldEndpoint: h.Endpoint().Address(),
		logger.FieldAttempt:  attempt,
	})
	return p, nil
}

// attempt performs lookup, select, dial and probe once.
func (b *Bootstrapper) attempt(cfg DependencyConfig, number int) (Handle, Attempt, error) {
	start := b.now()
	a := Attempt{Number: number}
	fail := func(stage Stage, err error) (Handle, Attempt, error) {
		a.Stage = stage
		a.Err = err
		a.Duration = b.now().Sub(start)
		return nil, a, fmt.Errorf("%s: %w", stage, err)
	}

	records, err := b.lookup.LookupHealthy(b.ctx, cfg.Name)
	if err != nil {
		return fail(StageLookup, err)
	}
	ep, err := b.selector.Select(records)
	if err != nil {
		return fail(StageSelect, err)
	}
	a.Endpoint = ep

	h, err := b.dialer.Dial(b.ctx, cfg.Name, ep)
	if err != nil {
		return fail(StageDial, err)
	}

	if cfg.ProbeEnabled() {
		ctx, cancel := context.WithTimeout(b.ctx, cfg.ProbeTimeout)
		err := h.Probe(ctx)
		cancel()
		if err != nil {
			if cerr := h.Close(); cerr != nil {
				b.log.Debug("Closing unprobed client failed", logger.ErrorFields("close", cerr))
			}
			return fail(StageProbe, err)
		}
	}
	return h, a, nil
}
