// Package progress tracks how far a training or evaluation loop has
// advanced: total steps, total epochs, and steps within the current epoch.
package progress

import "fmt"

// State dict keys. Restore must use the same keys used to capture.
const (
	keyStepsCompleted        = "num_steps_completed"
	keyEpochsCompleted       = "num_epochs_completed"
	keyStepsCompletedInEpoch = "num_steps_completed_in_epoch"
)

// Progress counts completed steps and epochs. The zero value is a fresh
// loop that has not taken any steps.
type Progress struct {
	numStepsCompleted        int64
	numEpochsCompleted       int64
	numStepsCompletedInEpoch int64
}

// New returns an empty Progress.
func New() *Progress {
	return &Progress{}
}

// NumStepsCompleted returns the total number of completed steps.
func (p *Progress) NumStepsCompleted() int64 { return p.numStepsCompleted }

// NumEpochsCompleted returns the number of completed epochs.
func (p *Progress) NumEpochsCompleted() int64 { return p.numEpochsCompleted }

// NumStepsCompletedInEpoch returns the number of steps completed within
// the current epoch.
func (p *Progress) NumStepsCompletedInEpoch() int64 { return p.numStepsCompletedInEpoch }

// IncrementStep advances both the total and the in-epoch step counters.
func (p *Progress) IncrementStep() {
	p.numStepsCompleted++
	p.numStepsCompletedInEpoch++
}

// IncrementEpoch advances the epoch counter and zeroes the in-epoch
// step counter.
func (p *Progress) IncrementEpoch() {
	p.numEpochsCompleted++
	p.numStepsCompletedInEpoch = 0
}

// StateDict captures the counters in a map suitable for checkpointing.
func (p *Progress) StateDict() map[string]int64 {
	return map[string]int64{
		keyStepsCompleted:        p.numStepsCompleted,
		keyEpochsCompleted:       p.numEpochsCompleted,
		keyStepsCompletedInEpoch: p.numStepsCompletedInEpoch,
	}
}

// LoadStateDict restores counters captured by StateDict. All three keys
// must be present.
func (p *Progress) LoadStateDict(state map[string]int64) error {
	for _, key := range []string{keyStepsCompleted, keyEpochsCompleted, keyStepsCompletedInEpoch} {
		if _, ok := state[key]; !ok {
			return fmt.Errorf("progress state missing key %q", key)
		}
	}
	p.numStepsCompleted = state[keyStepsCompleted]
	p.numEpochsCompleted = state[keyEpochsCompleted]
	p.numStepsCompletedInEpoch = state[keyStepsCompletedInEpoch]
	return nil
}

func (p *Progress) String() string {
	return fmt.Sprintf("steps=%d epochs=%d steps_in_epoch=%d",
		p.numStepsCompleted, p.numEpochsCompleted, p.numStepsCompletedInEpoch)
}
