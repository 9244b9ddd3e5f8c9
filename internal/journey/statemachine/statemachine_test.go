package statemachine

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// The tests drive a deliberately small document workflow so failures read
// without knowledge of the production graph.
type docState string

type docAction string

type docContext struct {
	approver bool
	urgent   bool
}

const (
	stateDraft     docState = "DRAFT"
	stateReview    docState = "REVIEW"
	statePublished docState = "PUBLISHED"
	stateArchived  docState = "ARCHIVED"
	stateExpedited docState = "EXPEDITED"
)

const (
	actionSubmit  docAction = "SUBMIT"
	actionApprove docAction = "APPROVE"
	actionArchive docAction = "ARCHIVE"
	actionUnknown docAction = "UNKNOWN"
)

func isApprover(ctx *docContext) bool { return ctx.approver }
func isUrgent(ctx *docContext) bool   { return ctx.urgent }

type MachineSuite struct {
	suite.Suite
	machine *Machine[docState, docAction, *docContext]
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	machine, err := NewBuilder[docState, docAction, *docContext]().
		From(stateDraft,
			OnIf[docState, docAction](actionSubmit, isUrgent, stateExpedited),
			On[docState, docAction, *docContext](actionSubmit, stateReview),
		).
		From(stateReview,
			OnIf[docState, docAction](actionApprove, isApprover, statePublished),
		).
		From(statePublished).
		FromAny(On[docState, docAction, *docContext](actionArchive, stateArchived)).
		Build()
	s.Require().NoError(err)
	s.machine = machine
}

func (s *MachineSuite) TestTransition() {
	s.Run("unknown action fails with InvalidTransitionError", func() {
		_, err := s.machine.Transition(stateDraft, actionUnknown)
		var invalid *InvalidTransitionError
		s.Require().ErrorAs(err, &invalid)
		s.Equal(stateDraft, invalid.State)
		s.Equal(actionUnknown, invalid.Action)
	})

	s.Run("two candidate transitions fail with AmbiguousTransitionError", func() {
		_, err := s.machine.Transition(stateDraft, actionSubmit)
		var ambiguous *AmbiguousTransitionError
		s.Require().ErrorAs(err, &ambiguous)
		s.Equal(stateDraft, ambiguous.State)
	})

	s.Run("a guarded transition never matches without a context", func() {
		// REVIEW declares only a guarded APPROVE edge; resolution must fail
		// closed rather than guess the guard's answer.
		_, err := s.machine.Transition(stateReview, actionApprove)
		var invalid *InvalidTransitionError
		s.ErrorAs(err, &invalid)
	})

	s.Run("any-state transitions resolve from every state", func() {
		for _, state := range []docState{stateDraft, stateReview, statePublished} {
			next, err := s.machine.Transition(state, actionArchive)
			s.NoError(err)
			s.Equal(stateArchived, next)
		}
	})
}

func (s *MachineSuite) TestTransitionWithContext() {
	s.Run("first transition whose guard holds wins", func() {
		next, err := s.machine.TransitionWithContext(stateDraft, actionSubmit, &docContext{urgent: true})
		s.NoError(err)
		s.Equal(stateExpedited, next)
	})

	s.Run("a failed guard falls through to the next declaration", func() {
		next, err := s.machine.TransitionWithContext(stateDraft, actionSubmit, &docContext{urgent: false})
		s.NoError(err)
		s.Equal(stateReview, next)
	})

	s.Run("no matching guard and no fallback rejects the action", func() {
		_, err := s.machine.TransitionWithContext(stateReview, actionApprove, &docContext{approver: false})
		var invalid *InvalidTransitionError
		s.ErrorAs(err, &invalid)
	})

	s.Run("guard is evaluated against the supplied context", func() {
		next, err := s.machine.TransitionWithContext(stateReview, actionApprove, &docContext{approver: true})
		s.NoError(err)
		s.Equal(statePublished, next)
	})
}

func (s *MachineSuite) TestPerStateShadowsAnyState() {
	machine, err := NewBuilder[docState, docAction, *docContext]().
		From(stateDraft,
			On[docState, docAction, *docContext](actionArchive, stateReview),
		).
		FromAny(On[docState, docAction, *docContext](actionArchive, stateArchived)).
		Build()
	s.Require().NoError(err)

	next, err := machine.Transition(stateDraft, actionArchive)
	s.NoError(err)
	s.Equal(stateReview, next)

	next, err = machine.Transition(stateReview, actionArchive)
	s.NoError(err)
	s.Equal(stateArchived, next)
}

func (s *MachineSuite) TestDeterminism() {
	// Identical inputs must resolve identically on every call.
	ctx := &docContext{urgent: true}
	first, err := s.machine.TransitionWithContext(stateDraft, actionSubmit, ctx)
	s.Require().NoError(err)
	for i := 0; i < 100; i++ {
		next, err := s.machine.TransitionWithContext(stateDraft, actionSubmit, ctx)
		s.Require().NoError(err)
		s.Require().Equal(first, next)
	}
}

func (s *MachineSuite) TestAnd() {
	truthy := func(*docContext) bool { return true }
	falsy := func(*docContext) bool { return false }

	s.True(And[*docContext]()(nil))
	s.True(And(truthy, truthy)(&docContext{}))
	s.False(And(truthy, falsy)(&docContext{}))
}

type BuilderSuite struct {
	suite.Suite
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) TestBuildRejectsDuplicateState() {
	_, err := NewBuilder[docState, docAction, *docContext]().
		From(stateDraft, On[docState, docAction, *docContext](actionSubmit, stateReview)).
		From(stateDraft, On[docState, docAction, *docContext](actionArchive, stateArchived)).
		Build()
	s.Require().Error(err)
	s.Contains(err.Error(), "declared twice")
}

func (s *BuilderSuite) TestBuildRejectsShadowedTransition() {
	s.Run("per-state list", func() {
		_, err := NewBuilder[docState, docAction, *docContext]().
			From(stateDraft,
				On[docState, docAction, *docContext](actionSubmit, stateReview),
				OnIf[docState, docAction](actionSubmit, isUrgent, stateExpedited),
			).
			Build()
		s.Require().Error(err)
		s.Contains(err.Error(), "unreachable")
	})

	s.Run("any-state list", func() {
		_, err := NewBuilder[docState, docAction, *docContext]().
			FromAny(
				On[docState, docAction, *docContext](actionArchive, stateArchived),
				On[docState, docAction, *docContext](actionArchive, stateReview),
			).
			Build()
		s.Error(err)
	})

	s.Run("guarded edges before the unconditional one are fine", func() {
		_, err := NewBuilder[docState, docAction, *docContext]().
			From(stateDraft,
				OnIf[docState, docAction](actionSubmit, isUrgent, stateExpedited),
				On[docState, docAction, *docContext](actionSubmit, stateReview),
			).
			Build()
		s.NoError(err)
	})
}

func (s *BuilderSuite) TestBuildAccumulatesErrors() {
	_, err := NewBuilder[docState, docAction, *docContext]().
		From(stateDraft, On[docState, docAction, *docContext](actionSubmit, stateReview)).
		From(stateDraft).
		From(stateReview,
			On[docState, docAction, *docContext](actionApprove, statePublished),
			On[docState, docAction, *docContext](actionApprove, stateArchived),
		).
		Build()
	s.Require().Error(err)
	s.Contains(err.Error(), "declared twice")
	s.Contains(err.Error(), "unreachable")
}
