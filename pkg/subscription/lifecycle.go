package subscription

import (
	"slices"
	"strings"

	"github.com/dmitrymomot/invoicer/pkg/statemachine"
)

// State is a plan/status pair as seen by the transition table.
type State string

const (
	StateFreeActive   State = "free/active"
	StateProActive    State = "pro/active"
	StateProPastDue   State = "pro/past_due"
	StateFreePastDue  State = "free/past_due"
	StateFreeCanceled State = "free/canceled"
)

var (
	proStates  = []State{StateProActive, StateProPastDue}
	freeStates = []State{StateFreeActive, StateFreePastDue, StateFreeCanceled}
	allStates  = append(slices.Clone(proStates), freeStates...)
)

// lifecycle allows activation from any state, including after cancellation.
// Pause and resume change only the status and keep the plan.
var lifecycle = statemachine.MustNew(
	statemachine.T(allStates, EventPaymentVerified, StateProActive),
	statemachine.T(allStates, EventActivated, StateProActive),
	statemachine.T(allStates, EventCancelled, StateFreeCanceled),
	statemachine.T(allStates, EventExpired, StateFreeCanceled),
	statemachine.T(proStates, EventPaused, StateProPastDue),
	statemachine.T(freeStates, EventPaused, StateFreePastDue),
	statemachine.T(proStates, EventResumed, StateProActive),
	statemachine.T(freeStates, EventResumed, StateFreeActive),
)

// Split returns the plan and status encoded in s.
func (s State) Split() (Plan, Status) {
	plan, status, _ := strings.Cut(string(s), "/")
	return Plan(plan), Status(status)
}
