package apply

import (
	"errors"
	"fmt"
	"slices"
)

// ErrIllegalTransition is returned when the orchestrator is driven out of
// order.
var ErrIllegalTransition = errors.New("illegal state transition")

// State of an Orchestrator.
type State uint8

// Orchestrator states.
const (
	StateBuilding State = iota
	StateValidated
	StateApplying
	StateAwaitingConfirmation
	StateCommitted
	StateDiscarded
	StateFailed
)

var stateNames = map[State]string{
	StateBuilding:             "building",
	StateValidated:            "validated",
	StateApplying:             "applying",
	StateAwaitingConfirmation: "awaiting_confirmation",
	StateCommitted:            "committed",
	StateDiscarded:            "discarded",
	StateFailed:               "failed",
}

// String implements Stringer interface.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return "unknown"
}

// Terminal returns true for states without outgoing transitions.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Discarded is reachable before any mutation when the operator aborts and
// while applying when nothing was affected.
var transitions = map[State][]State{
	StateBuilding:             {StateValidated, StateFailed},
	StateValidated:            {StateApplying, StateDiscarded, StateFailed},
	StateApplying:             {StateAwaitingConfirmation, StateDiscarded, StateFailed},
	StateAwaitingConfirmation: {StateCommitted, StateDiscarded, StateFailed},
}

// transition moves the state machine to next.
func (o *Orchestrator) transition(next State) error {
	if !slices.Contains(transitions[o.state], next) {
		return fmt.Errorf("%w from %s to %s", ErrIllegalTransition, o.state, next)
	}

	o.logger.Debug("State transition", "from", o.state, "to", next)
	o.state = next

	return nil
}
