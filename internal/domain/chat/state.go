package chat

import "errors"

// State is the lifecycle position of a turn.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingFirstByte State = "awaiting_first_byte"
	StateStreaming         State = "streaming"
	StateFinalizing        State = "finalizing"
	StateErrored           State = "errored"
)

// Signal is what drives a turn from one state to the next.
type Signal string

const (
	SignalSubmit         Signal = "submit"
	SignalOpened         Signal = "opened"
	SignalStep           Signal = "step"
	SignalChunk          Signal = "chunk"
	SignalFinal          Signal = "final"
	SignalBackendError   Signal = "backend_error"
	SignalTransportError Signal = "transport_error"
	SignalSettle         Signal = "settle"
)

// ErrInvalidTransition is returned for a (state, signal) pair the table does not allow.
var ErrInvalidTransition = errors.New("invalid turn transition")

// transitions is the complete table; a missing pair is illegal.
var transitions = map[State]map[Signal]State{
	StateIdle: {
		SignalSubmit: StateAwaitingFirstByte,
	},
	StateAwaitingFirstByte: {
		SignalOpened:         StateStreaming,
		SignalFinal:          StateFinalizing,
		SignalBackendError:   StateErrored,
		SignalTransportError: StateErrored,
		SignalSettle:         StateIdle,
	},
	StateStreaming: {
		SignalStep:           StateStreaming,
		SignalChunk:          StateStreaming,
		SignalFinal:          StateFinalizing,
		SignalBackendError:   StateErrored,
		SignalTransportError: StateErrored,
		SignalSettle:         StateIdle,
	},
	StateFinalizing: {
		SignalSettle: StateIdle,
	},
	StateErrored: {
		SignalSettle: StateIdle,
	},
}

// Next returns the state reached from s on sig.
func (s State) Next(sig Signal) (State, error) {
	next, ok := transitions[s][sig]
	if !ok {
		return s, ErrInvalidTransition
	}
	return next, nil
}

// Loading reports whether the turn is still waiting for backend output.
func (s State) Loading() bool {
	return s == StateAwaitingFirstByte || s == StateStreaming
}

// Terminal reports whether no further backend events are accepted.
func (s State) Terminal() bool {
	return s == StateFinalizing || s == StateErrored
}
