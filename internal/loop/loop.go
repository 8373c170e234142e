// Package loop holds the helper functions shared by training and
// evaluation loops: completion predicates over progress counters,
// train/eval mode management, distributed-sampler epoch handling, and
// step-function signature inspection.
package loop

import (
	"reflect"

	"go.uber.org/zap"

	"gradlog/internal/data"
	"gradlog/internal/progress"
)

var logger = zap.NewNop()

// SetLogger installs the logger used for diagnostics. The default
// discards everything.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// IsDone reports whether the loop has reached either configured
// maximum. A zero maximum means unbounded.
func IsDone(p *progress.Progress, maxEpochs, maxSteps int64) bool {
	return (maxSteps > 0 && p.NumStepsCompleted() >= maxSteps) ||
		(maxEpochs > 0 && p.NumEpochsCompleted() >= maxEpochs)
}

// IsEpochDone reports whether the current epoch has reached either the
// per-epoch step maximum or the total step maximum. A zero maximum
// means unbounded.
func IsEpochDone(p *progress.Progress, maxStepsPerEpoch, maxSteps int64) bool {
	return (maxSteps > 0 && p.NumStepsCompleted() >= maxSteps) ||
		(maxStepsPerEpoch > 0 && p.NumStepsCompletedInEpoch() >= maxStepsPerEpoch)
}

// epochSetter is implemented by samplers whose shuffle order depends on
// the current epoch, such as data.DistributedSampler.
type epochSetter interface {
	SetEpoch(epoch int)
}

// samplerProvider is implemented by loaders that expose their sampler,
// such as data.DataLoader.
type samplerProvider interface {
	Sampler() data.Sampler
}

// MaybeSetDistributedSamplerEpoch sets the epoch on the dataloader's
// sampler when the sampler is epoch-aware, and no-ops otherwise. Loops
// call this at the top of every epoch so distributed shards reshuffle.
func MaybeSetDistributedSamplerEpoch(dl any, epoch int) {
	p, ok := dl.(samplerProvider)
	if !ok {
		return
	}
	if es, ok := p.Sampler().(epochSetter); ok {
		es.SetEpoch(epoch)
	}
}

var (
	iteratorType = reflect.TypeOf((*data.Iterator)(nil)).Elem()
	batchType    = reflect.TypeOf(data.Batch(nil))
)

// StepRequiresIterator inspects a step function's signature and reports
// whether the loop should hand it the batch iterator itself rather than
// draining the iterator and passing one batch at a time. The decision
// rides on the type of the function's final parameter: data.Iterator
// means the step wants the iterator, data.Batch means single batches.
// Anything else logs a warning and defaults to single batches.
func StepRequiresIterator(stepFn any) bool {
	t := reflect.TypeOf(stepFn)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() == 0 {
		logger.Warn("expected a step function with a data parameter",
			zap.Any("got", stepFn))
		return false
	}
	dataParam := t.In(t.NumIn() - 1)
	switch {
	case dataParam == iteratorType:
		return true
	case dataParam == batchType:
		return false
	case dataParam.Kind() != reflect.Interface && dataParam.Implements(iteratorType):
		return true
	default:
		logger.Warn("step function data parameter is neither a batch nor an iterator",
			zap.Stringer("type", dataParam))
		return false
	}
}
