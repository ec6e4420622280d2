// Package statemachine is a small finite state machine with guarded
// transitions, actions and observers.
//
// States and events are any types with a Name method. Several transitions
// may share a state and event; guards pick between them in registration
// order:
//
//	m := statemachine.MustNew(Draft,
//		statemachine.WithTransition(Draft, Published, Submit, statemachine.WithGuard(isEditor)),
//		statemachine.WithTransition(Draft, InReview, Submit),
//	)
//	if err := m.Fire(ctx, Submit, user); statemachine.IsNoTransitionAvailableError(err) {
//		// not allowed in this state
//	}
package statemachine
