package upstream

import (
	"fmt"
	"time"

	"github.com/kbukum/bookingplatform/discovery"
)

// Phase is the bootstrap phase of one dependency.
type Phase int

const (
	PhaseUnstarted Phase = iota
	PhaseAttempting
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "unstarted"
	case PhaseAttempting:
		return "attempting"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of a dependency's bootstrap state machine:
//
//	Unstarted -> Attempting(1) -> Attempting(i+1) -> ... -> Ready | Failed
//
// Failed and Ready go back to Attempting(1) when a new pipeline starts.
type State struct {
	Phase Phase
	// Attempt is the attempt in progress (Attempting) or the one that
	// finished the pipeline (Ready, Failed).
	Attempt  int
	Endpoint discovery.Endpoint
	Err      error
	Since    time.Time
}

func (s State) String() string {
	switch s.Phase {
	case PhaseAttempting:
		return fmt.Sprintf("attempting(%d)", s.Attempt)
	case PhaseReady:
		return "ready(" + s.Endpoint.Address() + ")"
	default:
		return s.Phase.String()
	}
}

// Stage names the step of a bootstrap attempt that failed.
type Stage string

const (
	StageLookup Stage = "lookup"
	StageSelect Stage = "select"
	StageDial   Stage = "dial"
	StageProbe  Stage = "probe"
)

// Attempt records the outcome of one failed bootstrap attempt.
type Attempt struct {
	Number   int
	Stage    Stage
	Endpoint discovery.Endpoint
	Err      error
	Duration time.Duration
}
