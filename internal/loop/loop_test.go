package loop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gradlog/internal/data"
	"gradlog/internal/progress"
)

func progressAt(t *testing.T, steps, epochs, stepsInEpoch int64) *progress.Progress {
	t.Helper()
	p := progress.New()
	require.NoError(t, p.LoadStateDict(map[string]int64{
		"num_steps_completed":          steps,
		"num_epochs_completed":         epochs,
		"num_steps_completed_in_epoch": stepsInEpoch,
	}))
	return p
}

func TestIsDone(t *testing.T) {
	tests := []struct {
		name                 string
		steps, epochs        int64
		maxEpochs, maxSteps  int64
		want                 bool
	}{
		{"both unset", 100, 100, 0, 0, false},
		{"max steps met", 10, 0, 0, 10, true},
		{"max steps exceeded", 11, 0, 0, 10, true},
		{"max steps unmet", 9, 0, 0, 10, false},
		{"max epochs met", 0, 3, 3, 0, true},
		{"max epochs unmet", 0, 2, 3, 0, false},
		{"either side suffices", 10, 0, 99, 10, true},
		{"neither met", 5, 1, 3, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := progressAt(t, tt.steps, tt.epochs, 0)
			assert.Equal(t, tt.want, IsDone(p, tt.maxEpochs, tt.maxSteps))
		})
	}
}

func TestIsEpochDone(t *testing.T) {
	tests := []struct {
		name                       string
		steps, stepsInEpoch        int64
		maxStepsPerEpoch, maxSteps int64
		want                       bool
	}{
		{"both unset", 100, 100, 0, 0, false},
		{"per-epoch max met", 10, 4, 4, 0, true},
		{"per-epoch max unmet", 10, 3, 4, 0, false},
		{"total max met mid-epoch", 10, 1, 4, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := progressAt(t, tt.steps, 0, tt.stepsInEpoch)
			assert.Equal(t, tt.want, IsEpochDone(p, tt.maxStepsPerEpoch, tt.maxSteps))
		})
	}
}

// fakeModule records mode transitions for the toggling tests.
type fakeModule struct {
	training bool
}

func (m *fakeModule) Train(mode bool) { m.training = mode }
func (m *fakeModule) Training() bool { return m.training }

func TestSetAndResetModuleTrainingMode(t *testing.T) {
	encoder := &fakeModule{training: true}
	head := &fakeModule{training: false}
	modules := map[string]Module{"encoder": encoder, "head": head}

	prior := SetModuleTrainingMode(modules, false)

	assert.False(t, encoder.Training())
	assert.False(t, head.Training())
	assert.Equal(t, map[string]bool{"encoder": true, "head": false}, prior)

	ResetModuleTrainingMode(modules, prior)
	assert.True(t, encoder.Training(), "prior mode restored")
	assert.False(t, head.Training())
}

func TestResetModuleTrainingMode_IgnoresUnknownKeys(t *testing.T) {
	m := &fakeModule{training: false}
	ResetModuleTrainingMode(map[string]Module{"m": m}, map[string]bool{"other": true})
	assert.False(t, m.Training(), "modules without a captured mode stay put")
}

func TestMaybeSetDistributedSamplerEpoch(t *testing.T) {
	ds := make(data.SliceDataset, 8)
	sampler, err := data.NewDistributedSampler(len(ds), 2, 0, true, 0)
	require.NoError(t, err)
	loader, err := data.NewDataLoader(ds, 2, sampler)
	require.NoError(t, err)

	MaybeSetDistributedSamplerEpoch(loader, 5)
	assert.Equal(t, 5, sampler.Epoch())

	// A loader with a plain sampler, or a non-loader value, is a no-op.
	plain, err := data.NewDataLoader(ds, 2, nil)
	require.NoError(t, err)
	MaybeSetDistributedSamplerEpoch(plain, 5)
	MaybeSetDistributedSamplerEpoch("not a loader", 5)
}

func TestStepRequiresIterator(t *testing.T) {
	batchStep := func(ctx context.Context, batch data.Batch) error { return nil }
	iterStep := func(ctx context.Context, it data.Iterator) error { return nil }

	assert.False(t, StepRequiresIterator(batchStep))
	assert.True(t, StepRequiresIterator(iterStep))
}

func TestStepRequiresIterator_WarnsOnUnexpectedSignature(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	assert.False(t, StepRequiresIterator(func(ctx context.Context, n int) error { return nil }))
	assert.False(t, StepRequiresIterator(42), "non-function input")
	assert.False(t, StepRequiresIterator(nil))

	assert.Equal(t, 3, logs.Len(), "each bad signature logs one warning")
}
