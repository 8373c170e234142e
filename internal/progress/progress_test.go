package progress

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_Increment(t *testing.T) {
	p := New()

	for i := 0; i < 4; i++ {
		p.IncrementStep()
	}
	assert.Equal(t, int64(4), p.NumStepsCompleted())
	assert.Equal(t, int64(4), p.NumStepsCompletedInEpoch())
	assert.Equal(t, int64(0), p.NumEpochsCompleted())

	p.IncrementEpoch()
	assert.Equal(t, int64(4), p.NumStepsCompleted(), "total steps survive epoch rollover")
	assert.Equal(t, int64(0), p.NumStepsCompletedInEpoch(), "in-epoch counter resets")
	assert.Equal(t, int64(1), p.NumEpochsCompleted())

	p.IncrementStep()
	assert.Equal(t, int64(5), p.NumStepsCompleted())
	assert.Equal(t, int64(1), p.NumStepsCompletedInEpoch())
}

func TestProgress_StateDictRoundTrip(t *testing.T) {
	p := New()
	p.IncrementStep()
	p.IncrementStep()
	p.IncrementEpoch()
	p.IncrementStep()

	state := p.StateDict()

	restored := New()
	require.NoError(t, restored.LoadStateDict(state))

	if diff := cmp.Diff(p.StateDict(), restored.StateDict()); diff != "" {
		t.Errorf("restored progress mismatch (-want +got):\n%s", diff)
	}
}

func TestProgress_LoadStateDictMissingKey(t *testing.T) {
	p := New()
	err := p.LoadStateDict(map[string]int64{"num_steps_completed": 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing key")

	// A failed restore must not partially mutate the counters.
	assert.Equal(t, int64(0), p.NumStepsCompleted())
	assert.Equal(t, int64(0), p.NumEpochsCompleted())
}
