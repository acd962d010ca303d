package display

import (
	"errors"
	"fmt"
)

type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateError        State = "error"
	StateDisposed     State = "disposed"
)

var (
	ErrControllerDisposed       = errors.New("display: controller disposed")
	ErrInitializationInProgress = errors.New("display: initialization already in progress")
	ErrNoIdentifiers            = errors.New("display: at least one identifier is required")
	ErrInvalidStateTransition   = errors.New("display: invalid state transition")
)

// StateListener observes every state change. It is called without the
// controller lock held.
type StateListener func(from State, to State)

func validateTransition(current, next State) error {
	if stateTransitionAllowed(current, next) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, current, next)
}

func stateTransitionAllowed(current, next State) bool {
	allowed := map[State]map[State]struct{}{
		StateIdle: {
			StateInitializing: {},
			StateDisposed:     {},
		},
		StateInitializing: {
			StateActive:   {},
			StateError:    {},
			StateDisposed: {},
		},
		StateActive: {
			StateInitializing: {},
			StateDisposed:     {},
		},
		StateError: {
			StateInitializing: {},
			StateDisposed:     {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}
