// Package statemachine implements a generic guarded finite-state machine.
// A machine is compiled once from a builder into an immutable table of
// per-state transition lists plus a global any-state list, then resolved
// with Transition or TransitionWithContext. Resolution is pure: callers
// that want logging or metrics wrap the machine rather than hooking into it.
package statemachine

import "fmt"

// Condition guards a transition. Conditions must be pure: they may read the
// evaluation context but never mutate it.
type Condition[C any] func(C) bool

// And combines conditions; the result holds only when every operand holds.
func And[C any](conds ...Condition[C]) Condition[C] {
	return func(ctx C) bool {
		for _, cond := range conds {
			if !cond(ctx) {
				return false
			}
		}
		return true
	}
}

// Transition is one edge of the graph: an action, an optional guard, and the
// target state. Declaration order is significant; within a state the first
// transition whose action matches and whose guard holds wins.
type Transition[S, A comparable, C any] struct {
	Action    A
	Condition Condition[C]
	Target    S
}

// On declares an unconditional transition.
func On[S, A comparable, C any](action A, target S) Transition[S, A, C] {
	return Transition[S, A, C]{Action: action, Target: target}
}

// OnIf declares a guarded transition.
func OnIf[S, A comparable, C any](action A, cond Condition[C], target S) Transition[S, A, C] {
	return Transition[S, A, C]{Action: action, Condition: cond, Target: target}
}

// InvalidTransitionError reports an action that is illegal from the current
// state: no per-state or any-state transition matched. This is a normal,
// recoverable caller error.
type InvalidTransitionError struct {
	State  any
	Action any
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("no transition from state %v for action %v", e.State, e.Action)
}

// AmbiguousTransitionError reports a context-free resolution against a state
// that declares more than one transition for the action. It indicates a
// defect in the caller or the graph, not a user error: the graph demands a
// context to disambiguate and none was supplied.
type AmbiguousTransitionError struct {
	State  any
	Action any
}

func (e *AmbiguousTransitionError) Error() string {
	return fmt.Sprintf("multiple transitions from state %v for action %v require an evaluation context", e.State, e.Action)
}

// Machine resolves (state, action, context) to the next state. It is
// immutable after Build and safe for concurrent use.
type Machine[S, A comparable, C any] struct {
	table    map[S][]Transition[S, A, C]
	anyState []Transition[S, A, C]
}

// Transition resolves without an evaluation context. If the current state
// declares more than one transition for the action, resolution fails with
// AmbiguousTransitionError. A guarded transition never matches this call
// shape: guards need a context, and guessing would not fail closed.
func (m *Machine[S, A, C]) Transition(current S, action A) (S, error) {
	if n := countForAction(m.table[current], action); n > 1 {
		var zero S
		return zero, &AmbiguousTransitionError{State: current, Action: action}
	}
	if next, ok := resolve(m.table[current], action, nil); ok {
		return next, nil
	}
	if n := countForAction(m.anyState, action); n > 1 {
		var zero S
		return zero, &AmbiguousTransitionError{State: current, Action: action}
	}
	if next, ok := resolve(m.anyState, action, nil); ok {
		return next, nil
	}
	var zero S
	return zero, &InvalidTransitionError{State: current, Action: action}
}

// TransitionWithContext resolves with an evaluation context, scanning the
// current state's transitions in declaration order and falling back to the
// any-state list. The first transition whose action matches and whose guard
// (if any) holds wins.
func (m *Machine[S, A, C]) TransitionWithContext(current S, action A, ctx C) (S, error) {
	if next, ok := resolveCtx(m.table[current], action, ctx); ok {
		return next, nil
	}
	if next, ok := resolveCtx(m.anyState, action, ctx); ok {
		return next, nil
	}
	var zero S
	return zero, &InvalidTransitionError{State: current, Action: action}
}

// States returns every state that declares outgoing transitions. Exposed for
// graph sanity checks in tests.
func (m *Machine[S, A, C]) States() []S {
	out := make([]S, 0, len(m.table))
	for s := range m.table {
		out = append(out, s)
	}
	return out
}

func countForAction[S, A comparable, C any](list []Transition[S, A, C], action A) int {
	n := 0
	for _, t := range list {
		if t.Action == action {
			n++
		}
	}
	return n
}

// resolve matches unconditional transitions only; guarded edges are skipped
// because there is no context to evaluate them against.
func resolve[S, A comparable, C any](list []Transition[S, A, C], action A, _ any) (S, bool) {
	for _, t := range list {
		if t.Action == action && t.Condition == nil {
			return t.Target, true
		}
	}
	var zero S
	return zero, false
}

func resolveCtx[S, A comparable, C any](list []Transition[S, A, C], action A, ctx C) (S, bool) {
	for _, t := range list {
		if t.Action != action {
			continue
		}
		if t.Condition == nil || t.Condition(ctx) {
			return t.Target, true
		}
	}
	var zero S
	return zero, false
}
