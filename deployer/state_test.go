package deployer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "VERIFYING", StateVerifying.String())
	assert.Equal(t, "ABANDONED", StateAbandoned.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestState_TextRoundTrip(t *testing.T) {
	t.Parallel()

	var s State
	require.NoError(t, s.UnmarshalText([]byte("confirming")))
	assert.Equal(t, StateConfirming, s)

	b, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMING", string(b))

	require.Error(t, s.UnmarshalText([]byte("PENDING")))
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateCompiling, true},
		{StateCompiling, StateEstimating, true},
		{StateVerifying, StateDone, true},
		{StateIdle, StateEstimating, false},
		{StateConfirming, StateSubmitting, false},
		{StateCompiling, StateCompiling, false},
		{StateIdle, StateFailed, true},
		{StateVerifying, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFailed, StateFailed, false},
		{StateSubmitting, StateAbandoned, true},
		{StateConfirming, StateAbandoned, true},
		{StateEstimating, StateAbandoned, false},
		{StateVerifying, StateAbandoned, false},
		{StateAbandoned, StateFailed, false},
		{StateDone, StateAbandoned, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, canTransition(tt.from, tt.to))
		})
	}
}
