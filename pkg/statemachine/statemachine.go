package statemachine

import (
	"context"
	"errors"
	"sync"
)

// State is a machine state identified by its name.
type State interface {
	Name() string
}

// Event triggers a transition. Events are identified by name.
type Event interface {
	Name() string
}

// Guard decides whether a transition may be taken for data.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs before the state changes. An error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Observer is told about every completed transition.
type Observer func(ctx context.Context, from, to State, event Event)

// Transition moves the machine from From to To on Event once all Guards pass.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

func (t Transition) allows(ctx context.Context, event Event, data any) bool {
	for _, g := range t.Guards {
		if !g(ctx, t.From, event, data) {
			return false
		}
	}
	return true
}

// Machine is an in-memory state machine, safe for concurrent use.
// Transitions registered for the same state and event are tried in the
// order they were added; the first one whose guards pass is taken.
type Machine struct {
	mu        sync.RWMutex
	initial   State
	current   State
	table     map[string]map[string][]Transition
	observers []Observer
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Fire applies event. The error is *ErrNoTransitionAvailable when nothing
// is registered for the current state and event, *ErrTransitionRejected when
// every candidate was vetoed by a guard, or wraps ErrActionFailed.
func (m *Machine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	from := m.current
	t, err := m.pickLocked(ctx, event, data)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for _, a := range t.Actions {
		if err := a(ctx, from, t.To, event, data); err != nil {
			m.mu.Unlock()
			return errors.Join(ErrActionFailed, err)
		}
	}
	m.current = t.To
	observers := m.observers
	m.mu.Unlock()

	for _, o := range observers {
		o(ctx, from, t.To, event)
	}
	return nil
}

// CanFire reports whether Fire would find a transition for event and data.
// Actions are not run.
func (m *Machine) CanFire(ctx context.Context, event Event, data any) bool {
	if event == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.pickLocked(ctx, event, data)
	return err == nil
}

// Reset returns the machine to its initial state without notifying observers.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

func (m *Machine) pickLocked(ctx context.Context, event Event, data any) (Transition, error) {
	candidates := m.table[m.current.Name()][event.Name()]
	if len(candidates) == 0 {
		return Transition{}, &ErrNoTransitionAvailable{StateName: m.current.Name(), EventName: event.Name()}
	}
	for _, t := range candidates {
		if t.allows(ctx, event, data) {
			return t, nil
		}
	}
	return Transition{}, &ErrTransitionRejected{StateName: m.current.Name(), EventName: event.Name()}
}

func (m *Machine) add(t Transition) error {
	if t.From == nil || t.To == nil || t.Event == nil {
		return ErrInvalidTransition
	}
	from, evt := t.From.Name(), t.Event.Name()
	if m.table[from] == nil {
		m.table[from] = make(map[string][]Transition)
	}
	m.table[from][evt] = append(m.table[from][evt], t)
	return nil
}
