package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateMachine_Transitions(t *testing.T) {
	sm := NewSessionStateMachine()

	tests := []struct {
		name        string
		from        SessionState
		action      SessionTransition
		to          SessionState
		shouldError bool
	}{
		{"login with temporary password", SessionAnonymous, TransitionLogin, SessionMustChangePassword, false},
		{"login unverified", SessionAnonymous, TransitionLogin, SessionUnverified, false},
		{"login verified", SessionAnonymous, TransitionLogin, SessionVerified, false},
		{"change password", SessionMustChangePassword, TransitionChangePassword, SessionUnverified, false},
		{"change password when verified", SessionVerified, TransitionChangePassword, SessionUnverified, false},
		{"verify", SessionUnverified, TransitionVerify, SessionVerified, false},
		{"logout", SessionVerified, TransitionLogout, SessionAnonymous, false},
		{"suspend", SessionUnverified, TransitionSuspend, SessionSuspended, false},
		{"reinstate", SessionSuspended, TransitionReinstate, SessionAnonymous, false},

		{"login into suspended", SessionAnonymous, TransitionLogin, SessionSuspended, true},
		{"verify before password change", SessionMustChangePassword, TransitionVerify, SessionVerified, true},
		{"change password keeps verified", SessionVerified, TransitionChangePassword, SessionVerified, true},
		{"suspended cannot login", SessionSuspended, TransitionLogin, SessionVerified, true},
		{"suspended cannot logout", SessionSuspended, TransitionLogout, SessionAnonymous, true},
		{"anonymous cannot change password", SessionAnonymous, TransitionChangePassword, SessionUnverified, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sm.Transition(tc.from, tc.action, tc.to)
			if tc.shouldError {
				assert.Error(t, err)
				assert.Equal(t, tc.from, got, "State should not change on invalid transition")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.to, got)
			}
		})
	}
}

func TestSessionStateMachine_ValidTransitions(t *testing.T) {
	sm := NewSessionStateMachine()

	assert.Equal(t, []SessionTransition{TransitionLogin, TransitionSuspend}, sm.ValidTransitions(SessionAnonymous))
	assert.Equal(t, []SessionTransition{TransitionReinstate}, sm.ValidTransitions(SessionSuspended))
	assert.True(t, sm.CanTransition(SessionUnverified, TransitionVerify))
	assert.False(t, sm.CanTransition(SessionVerified, TransitionVerify))
}

func TestSessionStateMachine_IsAuthenticated(t *testing.T) {
	sm := NewSessionStateMachine()
	assert.False(t, sm.IsAuthenticated(SessionAnonymous))
	assert.False(t, sm.IsAuthenticated(SessionSuspended))
	assert.True(t, sm.IsAuthenticated(SessionMustChangePassword))
	assert.True(t, sm.IsAuthenticated(SessionVerified))
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, SessionSuspended, StateFor(true, true, true))
	assert.Equal(t, SessionMustChangePassword, StateFor(false, true, true))
	assert.Equal(t, SessionUnverified, StateFor(false, false, false))
	assert.Equal(t, SessionVerified, StateFor(false, false, true))
}
