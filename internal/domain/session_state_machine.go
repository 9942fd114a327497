package domain

import (
	"fmt"
	"sort"
)

// SessionState is where a browser session sits in the auth lifecycle
type SessionState string

const (
	SessionAnonymous          SessionState = "anonymous"
	SessionMustChangePassword SessionState = "must_change_password"
	SessionUnverified         SessionState = "unverified"
	SessionVerified           SessionState = "verified"
	SessionSuspended          SessionState = "suspended"
)

// SessionTransition is an action that moves a session between states
type SessionTransition string

const (
	TransitionLogin          SessionTransition = "login"
	TransitionChangePassword SessionTransition = "change_password"
	TransitionVerify         SessionTransition = "verify"
	TransitionLogout         SessionTransition = "logout"
	TransitionSuspend        SessionTransition = "suspend"
	TransitionReinstate      SessionTransition = "reinstate"
)

type stateTransitionKey struct {
	state      SessionState
	transition SessionTransition
}

// SessionStateMachine enforces the session lifecycle.
// Login lands in one of three states depending on the account flags,
// so each (state, transition) pair maps to the set of allowed targets.
//
//	[anonymous] --login--> [must_change_password] --change_password--> [unverified] --verify--> [verified]
//	                   \-> [unverified]                                       ^                   |
//	                   \-> [verified]                                          \--change_password-/
//
//	logout returns any authenticated state to [anonymous];
//	suspend moves any state to [suspended]; only reinstate leaves it.
type SessionStateMachine struct {
	transitions map[stateTransitionKey][]SessionState
}

// NewSessionStateMachine creates the machine with the lifecycle rules
func NewSessionStateMachine() *SessionStateMachine {
	sm := &SessionStateMachine{transitions: make(map[stateTransitionKey][]SessionState)}

	sm.addTransition(SessionAnonymous, TransitionLogin, SessionMustChangePassword, SessionUnverified, SessionVerified)

	sm.addTransition(SessionMustChangePassword, TransitionChangePassword, SessionUnverified)
	sm.addTransition(SessionUnverified, TransitionChangePassword, SessionUnverified)
	sm.addTransition(SessionVerified, TransitionChangePassword, SessionUnverified)

	sm.addTransition(SessionUnverified, TransitionVerify, SessionVerified)

	for _, s := range []SessionState{SessionMustChangePassword, SessionUnverified, SessionVerified} {
		sm.addTransition(s, TransitionLogout, SessionAnonymous)
	}
	for _, s := range []SessionState{SessionAnonymous, SessionMustChangePassword, SessionUnverified, SessionVerified} {
		sm.addTransition(s, TransitionSuspend, SessionSuspended)
	}
	sm.addTransition(SessionSuspended, TransitionReinstate, SessionAnonymous)

	return sm
}

func (sm *SessionStateMachine) addTransition(from SessionState, via SessionTransition, to ...SessionState) {
	key := stateTransitionKey{state: from, transition: via}
	sm.transitions[key] = append(sm.transitions[key], to...)
}

// Transition validates moving from current to next via action.
// The current state is returned unchanged on error.
func (sm *SessionStateMachine) Transition(current SessionState, action SessionTransition, next SessionState) (SessionState, error) {
	for _, allowed := range sm.transitions[stateTransitionKey{state: current, transition: action}] {
		if allowed == next {
			return next, nil
		}
	}
	return current, fmt.Errorf("invalid session transition: cannot %s from %s to %s", action, current, next)
}

// CanTransition checks whether action is valid from state regardless of target
func (sm *SessionStateMachine) CanTransition(current SessionState, action SessionTransition) bool {
	return len(sm.transitions[stateTransitionKey{state: current, transition: action}]) > 0
}

// ValidTransitions returns the actions available from state, sorted
func (sm *SessionStateMachine) ValidTransitions(state SessionState) []SessionTransition {
	var result []SessionTransition
	for key := range sm.transitions {
		if key.state == state {
			result = append(result, key.transition)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// IsAuthenticated reports whether the state carries a usable session
func (sm *SessionStateMachine) IsAuthenticated(state SessionState) bool {
	switch state {
	case SessionMustChangePassword, SessionUnverified, SessionVerified:
		return true
	}
	return false
}

// StateFor derives the session state from account flags
func StateFor(suspended, mustChangePassword, emailVerified bool) SessionState {
	switch {
	case suspended:
		return SessionSuspended
	case mustChangePassword:
		return SessionMustChangePassword
	case !emailVerified:
		return SessionUnverified
	}
	return SessionVerified
}
