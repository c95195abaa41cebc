package upstream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/bookingplatform/discovery"
)

var (
	errConnRefused = errors.New("connection refused")
	errOverloaded  = errors.New("overloaded")
	errRejected    = errors.New("invalid argument")
)

func testClassify(err error) Kind {
	switch {
	case errors.Is(err, errConnRefused):
		return KindConnection
	case errors.Is(err, errOverloaded):
		return KindTransient
	default:
		return KindTerminal
	}
}

type fakeHandle struct {
	service  string
	endpoint discovery.Endpoint
	probeErr error

	mu     sync.Mutex
	invoke func(ctx context.Context, call int) ([]byte, error)
	calls  int
	closed atomic.Bool
	probed atomic.Int32
}

func (h *fakeHandle) Service() string              { return h.service }
func (h *fakeHandle) Endpoint() discovery.Endpoint { return h.endpoint }

func (h *fakeHandle) Invoke(ctx context.Context, _ string, _ []byte) ([]byte, error) {
	h.mu.Lock()
	h.calls++
	call := h.calls
	fn := h.invoke
	h.mu.Unlock()
	if fn == nil {
		return []byte(`{}`), nil
	}
	return fn(ctx, call)
}

func (h *fakeHandle) Probe(context.Context) error {
	h.probed.Add(1)
	return h.probeErr
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

func (h *fakeHandle) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// fakeDialer returns a new fakeHandle per dial; probeErrs[i] is the probe
// result of the i-th handle and invokes[i] its call behaviour.
type fakeDialer struct {
	mu        sync.Mutex
	probeErrs []error
	invokes   []func(ctx context.Context, call int) ([]byte, error)
	dialErr   error
	handles   []*fakeHandle
}

func (d *fakeDialer) Dial(_ context.Context, service string, ep discovery.Endpoint) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	h := &fakeHandle{service: service, endpoint: ep}
	if i := len(d.handles); i < len(d.probeErrs) {
		h.probeErr = d.probeErrs[i]
	}
	if i := len(d.handles); i < len(d.invokes) {
		h.invoke = d.invokes[i]
	}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDialer) Handles() []*fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeHandle(nil), d.handles...)
}

// scriptedLookup fails the first failures calls and then returns a single
// healthy record.
type scriptedLookup struct {
	failures int
	err      error
	gate     chan struct{}
	calls    atomic.Int32
}

func (l *scriptedLookup) LookupHealthy(ctx context.Context, name string) ([]discovery.HealthRecord, error) {
	n := int(l.calls.Add(1))
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= l.failures {
		if l.err != nil {
			return nil, l.err
		}
		return nil, discovery.ErrServiceNotFound
	}
	return []discovery.HealthRecord{{
		ServiceName:    name,
		ServiceAddress: "10.0.0.7",
		Port:           50052,
		Checks:         []discovery.Check{{CheckID: "serfHealth", Status: discovery.CheckPassing}},
	}}, nil
}

// countingSleep records backoff delays without waiting.
type countingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *countingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *countingSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
