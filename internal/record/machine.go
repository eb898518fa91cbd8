package record

import (
	"sync"
)

// State is one of the six recording states.
type State string

// Recording states.
const (
	StateStopped   State = "stopped"
	StateMatching  State = "matching"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateFinishing State = "finishing"
	StateStopping  State = "stopping"
)

// Event is an input to the state machine.
type Event string

// State machine events.
const (
	EventStart  Event = "start"
	EventPause  Event = "pause"
	EventResume Event = "resume"
	EventStop   Event = "stop"
	EventReset  Event = "reset"
)

// TransitionListener observes every state change. Listeners run inline on
// the transitioning goroutine and must not block or issue commands back into
// the machine.
type TransitionListener func(from, to State, event Event)

// transitions maps (state, event) to the next state. Absent pairs are
// no-ops: a pause while stopped, or a start while recording, changes
// nothing.
var transitions = map[State]map[Event]State{
	StateStopped: {
		EventStart: StateMatching,
	},
	StateMatching: {
		EventStart: StateRecording,
	},
	StateRecording: {
		EventPause: StatePaused,
		EventStop:  StateStopping,
	},
	StatePaused: {
		EventResume: StateRecording,
		EventStop:   StateStopping,
	},
}

// Machine is the recording state machine. It is safe for concurrent use;
// listener notification happens outside the lock so a listener can read the
// current state.
type Machine struct {
	mu        sync.Mutex
	state     State
	listeners []TransitionListener
}

// NewMachine starts in the stopped state.
func NewMachine() *Machine {
	return &Machine{state: StateStopped}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AddListener registers a transition observer.
func (m *Machine) AddListener(fn TransitionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Fire applies an event. Reset always lands in stopped; any other event not
// defined for the current state is a no-op. The returned bool reports
// whether the state changed.
func (m *Machine) Fire(event Event) (State, bool) {
	m.mu.Lock()
	from := m.state
	var to State
	switch {
	case event == EventReset:
		to = StateStopped
	default:
		next, ok := transitions[from][event]
		if !ok {
			m.mu.Unlock()
			return from, false
		}
		to = next
	}
	if to == from {
		m.mu.Unlock()
		return from, false
	}
	m.state = to
	listeners := make([]TransitionListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to, event)
	}
	return to, true
}

// advance moves to an explicit state regardless of the transition table,
// used for the internal stopping→finishing→stopped completion path.
func (m *Machine) advance(to State, event Event) {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	listeners := make([]TransitionListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to, event)
	}
}

// BeginFinishing marks the persistence phase of a stop.
func (m *Machine) BeginFinishing() { m.advance(StateFinishing, EventStop) }

// CompleteStop lands back in stopped after a stop or finishing phase.
func (m *Machine) CompleteStop() { m.advance(StateStopped, EventStop) }

// Reconcile synthesizes the internal event matching an external recorder
// status, but only when the current state disagrees with it. It returns the
// event fired, or "" when the states already agreed. An external stop is not
// reconciled here: the session service treats it as a cancellation.
func (m *Machine) Reconcile(status RecorderStatus) (Event, bool) {
	switch status {
	case StatusStarted:
		if m.State() == StateMatching {
			m.Fire(EventStart)
			return EventStart, true
		}
	case StatusPaused:
		if m.State() == StateRecording {
			m.Fire(EventPause)
			return EventPause, true
		}
	case StatusResumed:
		if m.State() == StatePaused {
			m.Fire(EventResume)
			return EventResume, true
		}
	}
	return "", false
}
