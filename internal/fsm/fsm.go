// Package fsm holds the pure listening-session transition function.
package fsm

import (
	"fmt"

	"github.com/pandagg110/speach-recognition/internal/failure"
)

type State string

type EventKind string

type EffectKind string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
)

const (
	EventStartIntent   EventKind = "start_intent"
	EventStopIntent    EventKind = "stop_intent"
	EventStarted       EventKind = "started"
	EventEnded         EventKind = "ended"
	EventResult        EventKind = "result"
	EventError         EventKind = "error"
	EventStartRejected EventKind = "start_rejected"
)

const (
	EffectStartEngine     EffectKind = "start_engine"
	EffectStopEngine      EffectKind = "stop_engine"
	EffectRecord          EffectKind = "record"
	EffectRequestFallback EffectKind = "request_fallback"
)

// Event is one input to Transition: a user intent, an engine event, or a start outcome.
type Event struct {
	Kind EventKind
	// Text and Confidence carry the recognized alternative for EventResult.
	Text       string
	Confidence float64
	// Code is the raw engine error code for EventError.
	Code string
	// Reason describes a synchronous start rejection.
	Reason string
}

// Effect is a side effect the caller must perform after a transition.
type Effect struct {
	Kind       EffectKind
	Text       string
	Confidence float64
	// Intent names the user intent that produced an EffectRequestFallback.
	Intent EventKind
}

// Machine is the complete controller state folded by Transition.
type Machine struct {
	State   State
	Capable bool
	// ManualStop suppresses auto-restart on the next ended event.
	ManualStop bool
	// StopRequested is true between a stop intent and its ended event.
	StopRequested bool
	// Confirmed is true once a started event arrived for the current attempt.
	Confirmed bool
	// Err is the active classified error, empty when absent.
	Err      failure.Category
	Restarts int
}

// New returns the initial machine for an engine capability.
func New(capable bool) Machine {
	return Machine{State: StateIdle, Capable: capable}
}

// Listening reports whether the machine is in the listening state.
func (m Machine) Listening() bool {
	return m.State == StateListening
}

// HasError reports whether an error is active.
func (m Machine) HasError() bool {
	return m.Err != ""
}

// Transition folds one event into m and returns the effects to perform.
// Intents whose preconditions are unmet leave m unchanged and produce no effects.
func Transition(m Machine, ev Event) (Machine, []Effect, error) {
	if m.State != StateIdle && m.State != StateListening {
		return m, nil, fmt.Errorf("unknown state %q", m.State)
	}

	switch ev.Kind {
	case EventStartIntent:
		if !m.Capable {
			return m, []Effect{{Kind: EffectRequestFallback, Intent: EventStartIntent}}, nil
		}
		if m.Listening() {
			return m, nil, nil
		}
		m.State = StateListening
		m.ManualStop = false
		m.StopRequested = false
		m.Confirmed = false
		m.Err = ""
		m.Restarts = 0
		return m, []Effect{{Kind: EffectStartEngine}}, nil

	case EventStopIntent:
		if !m.Capable {
			return m, []Effect{{Kind: EffectRequestFallback, Intent: EventStopIntent}}, nil
		}
		if !m.Listening() || m.StopRequested {
			return m, nil, nil
		}
		m.ManualStop = true
		m.StopRequested = true
		return m, []Effect{{Kind: EffectStopEngine}}, nil

	case EventStarted:
		if !m.Listening() {
			return m, nil, nil
		}
		m.Confirmed = true
		m.Err = ""
		return m, nil, nil

	case EventEnded:
		if !m.Listening() {
			return m, nil, nil
		}
		if m.ManualStop {
			m.State = StateIdle
			m.StopRequested = false
			m.Confirmed = false
			return m, nil, nil
		}
		m.Confirmed = false
		m.Restarts++
		return m, []Effect{{Kind: EffectStartEngine}}, nil

	case EventResult:
		if !m.Listening() {
			return m, nil, nil
		}
		return m, []Effect{{Kind: EffectRecord, Text: ev.Text, Confidence: ev.Confidence}}, nil

	case EventError:
		if !m.Listening() {
			// Already idle: keep the first error rather than raising it again.
			if !m.HasError() {
				m.Err = failure.Classify(ev.Code)
			}
			return m, nil, nil
		}
		m.State = StateIdle
		m.StopRequested = false
		m.Confirmed = false
		m.Err = failure.Classify(ev.Code)
		// The engine may keep running after reporting an error; release it.
		return m, []Effect{{Kind: EffectStopEngine}}, nil

	case EventStartRejected:
		m.State = StateIdle
		m.StopRequested = false
		m.Confirmed = false
		m.Err = failure.StartRejected
		return m, nil, nil

	default:
		return m, nil, fmt.Errorf("unknown event %q in state %s", ev.Kind, m.State)
	}
}
