package engine

import "fmt"

// TurnPhase identifies where in a turn an error occurred.
type TurnPhase string

const (
	PhaseHistory  TurnPhase = "history"
	PhaseModel    TurnPhase = "model"
	PhaseFallback TurnPhase = "fallback"
)

// TurnError wraps a failure with the phase and tool round it happened
// in, so logs can tell a model outage from a delivery failure.
type TurnError struct {
	Phase TurnPhase
	Round int
	Cause error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed at %s (round %d): %v", e.Phase, e.Round, e.Cause)
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

func turnErr(phase TurnPhase, round int, cause error) *TurnError {
	return &TurnError{Phase: phase, Round: round, Cause: cause}
}
