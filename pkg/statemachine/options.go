package statemachine

import "fmt"

// Option configures a Machine under construction.
type Option func(*Machine) error

// TransitionOption configures one transition.
type TransitionOption func(*Transition)

// New creates a machine starting in initial.
func New(initial State, opts ...Option) (*Machine, error) {
	if initial == nil {
		return nil, ErrInvalidState
	}
	m := &Machine{
		initial: initial,
		current: initial,
		table:   make(map[string]map[string][]Transition),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on error.
func MustNew(initial State, opts ...Option) *Machine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition registers a transition from one state to another on event.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *Machine) error {
		t := Transition{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		return m.add(t)
	}
}

// WithObserver registers a function called after each transition.
func WithObserver(o Observer) Option {
	return func(m *Machine) error {
		if o != nil {
			m.observers = append(m.observers, o)
		}
		return nil
	}
}

// WithGuard adds a guard to the transition. All guards must pass.
func WithGuard(g Guard) TransitionOption {
	return func(t *Transition) {
		if g != nil {
			t.Guards = append(t.Guards, g)
		}
	}
}

// WithAction adds an action run before the state changes.
func WithAction(a Action) TransitionOption {
	return func(t *Transition) {
		if a != nil {
			t.Actions = append(t.Actions, a)
		}
	}
}
