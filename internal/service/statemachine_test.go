package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimSessionAdvanceHappyPath(t *testing.T) {
	s := &ClaimSession{State: StateReceived}
	require.NoError(t, s.advance(StateValidated))
	require.NoError(t, s.advance(StateReserved))
	require.NoError(t, s.advance(StateSubmitted))
	require.NoError(t, s.advance(StateConfirmed))
	require.NoError(t, s.advance(StateCommitted))
	assert.Equal(t, StateCommitted, s.State)
}

func TestClaimSessionAdvanceFailurePath(t *testing.T) {
	s := &ClaimSession{State: StateReceived}
	require.NoError(t, s.advance(StateValidated))
	require.NoError(t, s.advance(StateReserved))
	require.NoError(t, s.advance(StateSubmitted))
	require.NoError(t, s.advance(StateFailed))
	require.NoError(t, s.advance(StateReleased))
	assert.Equal(t, StateReleased, s.State)
}

func TestClaimSessionAdvanceRejectsSkip(t *testing.T) {
	s := &ClaimSession{State: StateReceived}
	err := s.advance(StateReserved)
	require.Error(t, err)
	assert.Equal(t, StateReceived, s.State)
}

func TestClaimSessionAdvanceRejectsBackward(t *testing.T) {
	s := &ClaimSession{State: StateReceived}
	require.NoError(t, s.advance(StateValidated))
	err := s.advance(StateReceived)
	require.Error(t, err)
	assert.Equal(t, StateValidated, s.State)
}

func TestClaimSessionAdvanceRejectsFromTerminalState(t *testing.T) {
	s := &ClaimSession{State: StateCommitted}
	err := s.advance(StateReleased)
	require.Error(t, err)
}

func TestClaimStateStringCoversAllValues(t *testing.T) {
	states := []ClaimState{
		StateReceived, StateValidated, StateReserved, StateSubmitted,
		StateConfirmed, StateFailed, StateReleased, StateCommitted,
	}
	for _, s := range states {
		assert.NotEqual(t, "UNKNOWN", s.String())
	}
	assert.Equal(t, "UNKNOWN", ClaimState(999).String())
}
