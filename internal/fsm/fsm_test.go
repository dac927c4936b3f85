package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateProcessing, next)

	next, err = Transition(next, EventUpload)
	require.NoError(t, err)
	require.Equal(t, StateUploading, next)

	next, err = Transition(next, EventTranscribed)
	require.NoError(t, err)
	require.Equal(t, StateReady, next)
}

func TestTransitionFailOnlyFromInFlightStates(t *testing.T) {
	for _, state := range []State{StateRecording, StateProcessing, StateUploading} {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
	for _, state := range []State{StateIdle, StateReady, StateError} {
		next, err := Transition(state, EventFail)
		require.Error(t, err)
		require.Equal(t, state, next)
	}
}

func TestTransitionRestartFromTerminalStates(t *testing.T) {
	for _, state := range []State{StateReady, StateError} {
		next, err := Transition(state, EventStart)
		require.NoError(t, err)
		require.Equal(t, StateRecording, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{name: "idle stop", state: StateIdle, event: EventStop},
		{name: "idle upload", state: StateIdle, event: EventUpload},
		{name: "recording start", state: StateRecording, event: EventStart},
		{name: "recording transcribed", state: StateRecording, event: EventTranscribed},
		{name: "processing start", state: StateProcessing, event: EventStart},
		{name: "processing transcribed", state: StateProcessing, event: EventTranscribed},
		{name: "uploading start", state: StateUploading, event: EventStart},
		{name: "uploading stop", state: StateUploading, event: EventStop},
		{name: "ready stop", state: StateReady, event: EventStop},
		{name: "error transcribed", state: StateError, event: EventTranscribed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.state, next)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid transition")
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestBusy(t *testing.T) {
	require.True(t, Busy(StateRecording))
	require.True(t, Busy(StateUploading))
	require.False(t, Busy(StateReady))
	require.False(t, Busy(StateIdle))
}
