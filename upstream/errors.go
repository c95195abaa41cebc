package upstream

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is.
var (
	// ErrBootstrapExhausted means every bootstrap attempt for a dependency failed.
	ErrBootstrapExhausted = errors.New("upstream bootstrap exhausted")
	// ErrCallTimeout means every attempt of a call ran out of time.
	ErrCallTimeout = errors.New("upstream call timed out")
	// ErrCallFailed means a call gave up after a retryable failure that was not only timeouts.
	ErrCallFailed = errors.New("upstream call failed")
	// ErrApplication means the dependency answered with a terminal application error.
	ErrApplication = errors.New("upstream application error")
	// ErrNoFallback means the dependency has no static address configured.
	ErrNoFallback = errors.New("upstream has no fallback address")
	// ErrClosed means the bootstrapper has been closed.
	ErrClosed = errors.New("upstream bootstrapper closed")
)

// BootstrapError is returned when a bootstrap pipeline runs out of attempts.
type BootstrapError struct {
	Service  string
	Attempts []Attempt
	// Err is the error of the last attempt.
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %d attempt(s) failed, last: %v", e.Service, len(e.Attempts), e.Err)
}

func (e *BootstrapError) Unwrap() []error {
	return []error{ErrBootstrapExhausted, e.Err}
}

// CallError describes a failed call. Its Kind is the classification of the
// last attempt's error.
type CallError struct {
	Service  string
	Method   string
	Kind     Kind
	Attempts int
	// TimedOut is true when every attempt ended in a timeout.
	TimedOut bool
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s/%s: %s after %d attempt(s): %v", e.Service, e.Method, e.Kind, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *CallError) sentinel() error {
	switch {
	case e.Kind == KindTerminal:
		return ErrApplication
	case e.TimedOut:
		return ErrCallTimeout
	default:
		return ErrCallFailed
	}
}
