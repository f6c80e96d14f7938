package deployer

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateCompiling
	StateEstimating
	StateSubmitting
	StateConfirming
	StateVerifying
	StateDone
	StateFailed
	// StateAbandoned ends a session whose transaction was sent but whose outcome was not observed
	// because the caller cancelled. The contract may or may not exist on chain.
	StateAbandoned
)

var stateNames = [...]string{
	StateIdle:       "IDLE",
	StateCompiling:  "COMPILING",
	StateEstimating: "ESTIMATING",
	StateSubmitting: "SUBMITTING",
	StateConfirming: "CONFIRMING",
	StateVerifying:  "VERIFYING",
	StateDone:       "DONE",
	StateFailed:     "FAILED",
	StateAbandoned:  "ABANDONED",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(b)))
	for i, n := range stateNames {
		if n == name {
			*s = State(i)

			return nil
		}
	}

	return fmt.Errorf("unknown state %q", string(b))
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateAbandoned
}

// canTransition reports whether a session in from may move to to. The pipeline only moves
// forward one state at a time. Any unfinished state may fail; only a state in which a
// transaction may be in flight may be abandoned.
func canTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}

	switch to {
	case StateFailed:
		return true
	case StateAbandoned:
		return from == StateSubmitting || from == StateConfirming
	default:
		return to == from+1
	}
}
