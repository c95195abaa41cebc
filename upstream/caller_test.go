package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/bookingplatform/logger"
)

func newTestCaller(opts ...CallerOption) *Caller {
	return NewCaller(testClassify, logger.NewNop(), opts...)
}

func TestCall_Success(t *testing.T) {
	h := &fakeHandle{service: "billing-service", invoke: func(ctx context.Context, call int) ([]byte, error) {
		return []byte(`{"id":"INV_1"}`), nil
	}}
	out, err := newTestCaller().Call(context.Background(), h, "GetInvoice", nil, Policy{Timeout: time.Second})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if string(out) != `{"id":"INV_1"}` {
		t.Errorf("payload = %s", out)
	}
}

func TestCall_TimeoutThenSuccess(t *testing.T) {
	h := &fakeHandle{service: "billing-service", invoke: func(ctx context.Context, call int) ([]byte, error) {
		if call == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []byte(`ok`), nil
	}}
	p := Policy{Timeout: 20 * time.Millisecond, MaxRetries: 3, Idempotent: true}
	out, err := newTestCaller().Call(context.Background(), h, "CreateInvoice", nil, p)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if string(out) != "ok" || h.Calls() != 2 {
		t.Errorf("out=%s calls=%d", out, h.Calls())
	}
}

func TestCall_AllAttemptsTimeOut(t *testing.T) {
	h := &fakeHandle{service: "billing-service", invoke: func(ctx context.Context, call int) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	p := Policy{Timeout: 5 * time.Millisecond, MaxRetries: 2, Idempotent: true}
	_, err := newTestCaller().Call(context.Background(), h, "CreateInvoice", nil, p)
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("expected ErrCallTimeout, got %v", err)
	}
	if h.Calls() != 3 {
		t.Errorf("expected 3 attempts, got %d", h.Calls())
	}
}

func TestCall_NonIdempotentRunsOnce(t *testing.T) {
	h := &fakeHandle{service: "billing-service", invoke: func(ctx context.Context, call int) ([]byte, error) {
		return nil, errConnRefused
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 5, Idempotent: false}
	_, err := newTestCaller().Call(context.Background(), h, "ProcessPayment", nil, p)
	if !errors.Is(err, ErrCallFailed) || !errors.Is(err, errConnRefused) {
		t.Fatalf("expected ErrCallFailed wrapping the cause, got %v", err)
	}
	if h.Calls() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", h.Calls())
	}
}

func TestCall_TerminalErrorNotRetried(t *testing.T) {
	h := &fakeHandle{service: "billing-service", invoke: func(ctx context.Context, call int) ([]byte, error) {
		return nil, errRejected
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 3, Idempotent: true}
	_, err := newTestCaller().Call(context.Background(), h, "CreateInvoice", nil, p)
	if !errors.Is(err, ErrApplication) || !errors.Is(err, errRejected) {
		t.Fatalf("expected application error wrapping the cause, got %v", err)
	}
	var cerr *CallError
	if !errors.As(err, &cerr) || cerr.Kind != KindTerminal || cerr.Attempts != 1 {
		t.Errorf("call error = %+v", cerr)
	}
}

func TestCall_RetriesTransientUpToBudget(t *testing.T) {
	h := &fakeHandle{service: "billing-service", invoke: func(ctx context.Context, call int) ([]byte, error) {
		return nil, errOverloaded
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 2, Idempotent: true}
	_, err := newTestCaller().Call(context.Background(), h, "GetInvoice", nil, p)
	if !errors.Is(err, ErrCallFailed) || errors.Is(err, ErrCallTimeout) {
		t.Fatalf("expected ErrCallFailed, got %v", err)
	}
	if h.Calls() != 3 {
		t.Errorf("expected 3 attempts, got %d", h.Calls())
	}
}

func TestCall_StopsWhenCallerContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &fakeHandle{service: "billing-service", invoke: func(_ context.Context, call int) ([]byte, error) {
		cancel()
		return nil, errOverloaded
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 5, Idempotent: true}
	_, err := newTestCaller().Call(ctx, h, "GetInvoice", nil, p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.Calls() != 1 {
		t.Errorf("expected no retry after cancellation, got %d attempts", h.Calls())
	}
}

func TestCall_ConnectionLossHook(t *testing.T) {
	h := &fakeHandle{service: "billing-service", invoke: func(ctx context.Context, call int) ([]byte, error) {
		if call == 1 {
			return nil, errConnRefused
		}
		return []byte("ok"), nil
	}}
	var lost []Handle
	c := newTestCaller(OnConnectionLost(func(stale Handle, err error) {
		lost = append(lost, stale)
	}))
	p := Policy{Timeout: time.Second, MaxRetries: 1, Idempotent: true}
	if _, err := c.Call(context.Background(), h, "GetInvoice", nil, p); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(lost) != 1 || lost[0] != Handle(h) {
		t.Errorf("hook calls = %v", lost)
	}
}

func TestCallWith_RetryUsesReplacementHandle(t *testing.T) {
	dialer := &fakeDialer{invokes: []func(context.Context, int) ([]byte, error){
		func(context.Context, int) ([]byte, error) { return nil, errConnRefused },
	}}
	b := newTestBootstrapper(&scriptedLookup{}, dialer, &countingSleep{}, DependencyConfig{Name: "billing-service"})
	defer b.Close()
	c := newTestCaller(OnConnectionLost(func(stale Handle, err error) {
		b.Invalidate(stale.Service(), stale, err)
	}))
	acquire := func(ctx context.Context) (Handle, func(), error) {
		return b.Acquire(ctx, "billing-service")
	}

	p := Policy{Timeout: time.Second, MaxRetries: 2, Idempotent: true}
	out, err := c.CallWith(context.Background(), "billing-service", acquire, "GetInvoice", nil, p)
	if err != nil {
		t.Fatalf("CallWith failed: %v", err)
	}
	if string(out) != `{}` {
		t.Errorf("payload = %s", out)
	}

	handles := dialer.Handles()
	if len(handles) != 2 {
		t.Fatalf("expected a second bootstrap, got %d handles", len(handles))
	}
	if handles[0].Calls() != 1 || handles[1].Calls() != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", handles[0].Calls(), handles[1].Calls())
	}
	if !handles[0].closed.Load() {
		t.Error("lost handle should be closed after the attempt")
	}
	if handles[1].closed.Load() {
		t.Error("replacement handle must stay open")
	}
}

func TestCallWith_AcquireErrorIsReturnedUnchanged(t *testing.T) {
	var acquired int
	acquire := func(context.Context) (Handle, func(), error) {
		acquired++
		return nil, nil, ErrBootstrapExhausted
	}
	p := Policy{Timeout: time.Second, MaxRetries: 3, Idempotent: true}
	_, err := newTestCaller().CallWith(context.Background(), "billing-service", acquire, "GetInvoice", nil, p)
	if err != ErrBootstrapExhausted {
		t.Fatalf("expected ErrBootstrapExhausted, got %v", err)
	}
	if acquired != 1 {
		t.Errorf("acquired %d times, want 1", acquired)
	}
}
