// Package statemachine provides immutable transition tables for record lifecycles.
//
// A Table is built once at package init and shared by all goroutines. Records
// carry their own state in storage; callers ask the table for the next state
// before persisting, so a transition that the table does not allow never
// reaches the database.
//
//	var invoiceFlow = statemachine.MustNew(
//		statemachine.T([]Status{Draft}, MarkSent, Sent),
//		statemachine.T([]Status{Sent, Overdue}, MarkPaid, Paid),
//	)
//
//	next, err := invoiceFlow.Next(inv.Status, MarkPaid)
package statemachine

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Transition moves any of From to To when Event fires.
type Transition[S, E comparable] struct {
	From  []S
	Event E
	To    S
}

// T is shorthand for building a Transition.
func T[S, E comparable](from []S, event E, to S) Transition[S, E] {
	return Transition[S, E]{From: from, Event: event, To: to}
}

// Table is a read-only lookup of (state, event) -> state.
type Table[S, E comparable] struct {
	next map[S]map[E]S
}

// New builds a table. Declaring the same (state, event) pair twice is an error.
func New[S, E comparable](transitions ...Transition[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{next: make(map[S]map[E]S)}
	for i, tr := range transitions {
		if len(tr.From) == 0 {
			return nil, fmt.Errorf("%w: transition %d has no source states", ErrInvalidTransition, i)
		}
		for _, from := range tr.From {
			events, ok := t.next[from]
			if !ok {
				events = make(map[E]S)
				t.next[from] = events
			}
			if _, dup := events[tr.Event]; dup {
				return nil, fmt.Errorf("%w: duplicate transition from %v on %v", ErrInvalidTransition, from, tr.Event)
			}
			events[tr.Event] = tr.To
		}
	}
	return t, nil
}

// MustNew is New that panics on an invalid table.
func MustNew[S, E comparable](transitions ...Transition[S, E]) *Table[S, E] {
	t, err := New(transitions...)
	if err != nil {
		panic(err)
	}
	return t
}

// Next returns the state reached from `from` on event.
func (t *Table[S, E]) Next(from S, event E) (S, error) {
	if to, ok := t.next[from][event]; ok {
		return to, nil
	}
	var zero S
	return zero, &NoTransitionError{State: fmt.Sprint(from), Event: fmt.Sprint(event)}
}

// Can reports whether event is allowed in state from.
func (t *Table[S, E]) Can(from S, event E) bool {
	_, ok := t.next[from][event]
	return ok
}

// Events lists the events allowed from a state, in no particular order.
func (t *Table[S, E]) Events(from S) []E {
	return slices.Collect(maps.Keys(t.next[from]))
}

var ErrInvalidTransition = errors.New("invalid transition definition")

// NoTransitionError reports an event that is not allowed in the current state.
type NoTransitionError struct {
	State string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition from state %q on event %q", e.State, e.Event)
}

// IsNoTransition reports whether err is a *NoTransitionError.
func IsNoTransition(err error) bool {
	var e *NoTransitionError
	return errors.As(err, &e)
}
