// Package data provides datasets, samplers, and batch loading for
// training loops. The DistributedSampler shards a dataset across a
// process group so each rank sees a disjoint slice per epoch.
package data

import (
	"fmt"
	"math/rand"
)

// Sample is a single training example.
type Sample struct {
	Features []float64
	Target   float64
}

// Batch is a group of samples yielded together by a DataLoader.
type Batch []Sample

// Dataset is an indexable collection of samples.
type Dataset interface {
	Len() int
	At(i int) Sample
}

// SliceDataset adapts an in-memory slice of samples to the Dataset interface.
type SliceDataset []Sample

func (d SliceDataset) Len() int { return len(d) }
func (d SliceDataset) At(i int) Sample { return d[i] }

// Sampler produces the index order for one pass over a dataset.
type Sampler interface {
	// Indices returns the dataset indices for the current epoch, in order.
	Indices() []int
	// Len returns the number of indices this sampler yields per epoch.
	Len() int
}

// SequentialSampler yields 0..n-1 in order.
type SequentialSampler struct {
	n int
}

// NewSequentialSampler returns a sampler over n indices.
func NewSequentialSampler(n int) *SequentialSampler {
	return &SequentialSampler{n: n}
}

func (s *SequentialSampler) Len() int { return s.n }

func (s *SequentialSampler) Indices() []int {
	out := make([]int, s.n)
	for i := range out {
		out[i] = i
	}
	return out
}

// DistributedSampler shards dataset indices across numReplicas processes.
// Each rank receives an equal share; the tail is padded by wrapping around
// so every rank yields the same number of indices. When shuffling, the
// permutation is derived from seed+epoch, so all ranks agree on the order
// for a given epoch and the order changes between epochs. Callers must
// SetEpoch before each pass or every epoch sees the same shuffle.
type DistributedSampler struct {
	n           int
	numReplicas int
	rank        int
	shuffle     bool
	seed        int64
	epoch       int
}

// NewDistributedSampler creates a sampler for n samples sharded across
// numReplicas processes, yielding the shard belonging to rank.
func NewDistributedSampler(n, numReplicas, rank int, shuffle bool, seed int64) (*DistributedSampler, error) {
	if numReplicas < 1 {
		return nil, fmt.Errorf("data: numReplicas must be >= 1, got %d", numReplicas)
	}
	if rank < 0 || rank >= numReplicas {
		return nil, fmt.Errorf("data: rank %d out of range for %d replicas", rank, numReplicas)
	}
	return &DistributedSampler{
		n:           n,
		numReplicas: numReplicas,
		rank:        rank,
		shuffle:     shuffle,
		seed:        seed,
	}, nil
}

// SetEpoch sets the epoch used to derive this sampler's shuffle order.
func (s *DistributedSampler) SetEpoch(epoch int) { s.epoch = epoch }

// Epoch returns the epoch most recently passed to SetEpoch.
func (s *DistributedSampler) Epoch() int { return s.epoch }

// Len returns the per-rank shard size.
func (s *DistributedSampler) Len() int {
	if s.n == 0 {
		return 0
	}
	return (s.n + s.numReplicas - 1) / s.numReplicas
}

func (s *DistributedSampler) Indices() []int {
	order := make([]int, s.n)
	for i := range order {
		order[i] = i
	}
	if s.shuffle {
		rng := rand.New(rand.NewSource(s.seed + int64(s.epoch)))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	// Pad by wrapping so the total divides evenly across replicas. The
	// pad may exceed the dataset size, so each pass appends at most one
	// full copy of the index list.
	total := s.Len() * s.numReplicas
	for len(order) < total {
		k := total - len(order)
		if k > s.n {
			k = s.n
		}
		order = append(order, order[:k]...)
	}

	shard := make([]int, 0, s.Len())
	for i := s.rank; i < total; i += s.numReplicas {
		shard = append(shard, order[i])
	}
	return shard
}

// DataLoader batches samples from a dataset in the order given by a
// sampler. A nil sampler means sequential order.
type DataLoader struct {
	dataset   Dataset
	sampler   Sampler
	batchSize int
}

// NewDataLoader creates a loader over dataset with the given batch size.
func NewDataLoader(dataset Dataset, batchSize int, sampler Sampler) (*DataLoader, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("data: batch size must be >= 1, got %d", batchSize)
	}
	if sampler == nil {
		sampler = NewSequentialSampler(dataset.Len())
	}
	return &DataLoader{dataset: dataset, sampler: sampler, batchSize: batchSize}, nil
}

// Sampler returns the sampler driving this loader's index order.
func (l *DataLoader) Sampler() Sampler { return l.sampler }

// NumBatches returns the number of batches per pass, counting a short
// final batch.
func (l *DataLoader) NumBatches() int {
	n := l.sampler.Len()
	return (n + l.batchSize - 1) / l.batchSize
}

// Iter begins a new pass over the dataset.
func (l *DataLoader) Iter() Iterator {
	return &batchIterator{loader: l, order: l.sampler.Indices()}
}

// Iterator yields successive batches until the pass is exhausted.
type Iterator interface {
	// Next returns the next batch, or ok=false when the pass is done.
	Next() (batch Batch, ok bool)
}

type batchIterator struct {
	loader *DataLoader
	order  []int
	pos    int
}

func (it *batchIterator) Next() (Batch, bool) {
	if it.pos >= len(it.order) {
		return nil, false
	}
	end := it.pos + it.loader.batchSize
	if end > len(it.order) {
		end = len(it.order)
	}
	batch := make(Batch, 0, end-it.pos)
	for _, idx := range it.order[it.pos:end] {
		batch = append(batch, it.loader.dataset.At(idx))
	}
	it.pos = end
	return batch, true
}
