package statemachine

import "fmt"

// Builder assembles a Machine. Errors accumulate and surface once from
// Build, so graph definitions read as one uninterrupted declaration.
type Builder[S, A comparable, C any] struct {
	table    map[S][]Transition[S, A, C]
	order    []S
	anyState []Transition[S, A, C]
	errs     []error
}

func NewBuilder[S, A comparable, C any]() *Builder[S, A, C] {
	return &Builder[S, A, C]{table: make(map[S][]Transition[S, A, C])}
}

// From declares the ordered transition list for a state. Each state may be
// declared exactly once; a second declaration is a defect, not a merge.
func (b *Builder[S, A, C]) From(state S, transitions ...Transition[S, A, C]) *Builder[S, A, C] {
	if _, dup := b.table[state]; dup {
		b.errs = append(b.errs, fmt.Errorf("state %v declared twice", state))
		return b
	}
	b.table[state] = transitions
	b.order = append(b.order, state)
	return b
}

// FromAny declares transitions that apply from every state. The per-state
// table is always consulted first, so any-state entries act as fallbacks.
func (b *Builder[S, A, C]) FromAny(transitions ...Transition[S, A, C]) *Builder[S, A, C] {
	b.anyState = append(b.anyState, transitions...)
	return b
}

// Build compiles the graph into an immutable Machine. It rejects shadowed
// transitions: once an unconditional edge for an action appears in a state's
// list, any later edge for the same action is unreachable and therefore a
// contradiction in the declaration.
func (b *Builder[S, A, C]) Build() (*Machine[S, A, C], error) {
	for _, state := range b.order {
		if err := checkShadowing(state, b.table[state]); err != nil {
			b.errs = append(b.errs, err)
		}
	}
	if err := checkShadowing("any-state", b.anyState); err != nil {
		b.errs = append(b.errs, err)
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid journey graph: %v", b.errs)
	}
	return &Machine[S, A, C]{table: b.table, anyState: b.anyState}, nil
}

func checkShadowing[S, A comparable, C any](state any, list []Transition[S, A, C]) error {
	sealed := make(map[A]bool)
	for _, t := range list {
		if sealed[t.Action] {
			return fmt.Errorf("state %v: transition for action %v is unreachable behind an unconditional edge", state, t.Action)
		}
		if t.Condition == nil {
			sealed[t.Action] = true
		}
	}
	return nil
}
