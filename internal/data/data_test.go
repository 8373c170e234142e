package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDataset(n int) SliceDataset {
	ds := make(SliceDataset, n)
	for i := range ds {
		ds[i] = Sample{Features: []float64{float64(i)}, Target: float64(i)}
	}
	return ds
}

func TestDistributedSampler_ShardsAreDisjointAndCover(t *testing.T) {
	const n, replicas = 10, 2

	seen := make(map[int]int)
	for rank := 0; rank < replicas; rank++ {
		s, err := NewDistributedSampler(n, replicas, rank, false, 0)
		require.NoError(t, err)
		for _, idx := range s.Indices() {
			seen[idx]++
		}
	}

	// Even split, no padding: every index appears exactly once.
	require.Len(t, seen, n)
	for idx, count := range seen {
		assert.Equal(t, 1, count, "index %d", idx)
	}
}

func TestDistributedSampler_PadsUnevenSplit(t *testing.T) {
	// 5 samples over 2 replicas: each rank still yields 3 indices.
	for rank := 0; rank < 2; rank++ {
		s, err := NewDistributedSampler(5, 2, rank, false, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, s.Len())
		assert.Len(t, s.Indices(), 3)
	}
}

func TestDistributedSampler_DatasetSmallerThanReplicas(t *testing.T) {
	// 1 sample over 4 replicas: the pad wraps the whole index list
	// repeatedly and every rank still yields Len() indices.
	for rank := 0; rank < 4; rank++ {
		s, err := NewDistributedSampler(1, 4, rank, false, 0)
		require.NoError(t, err)
		require.Equal(t, 1, s.Len())

		indices := s.Indices()
		require.Len(t, indices, 1, "rank %d", rank)
		assert.Equal(t, 0, indices[0], "rank %d", rank)
	}

	// 3 samples over 8 replicas: padding exceeds the dataset size but
	// the shards still only contain valid indices.
	for rank := 0; rank < 8; rank++ {
		s, err := NewDistributedSampler(3, 8, rank, false, 0)
		require.NoError(t, err)
		indices := s.Indices()
		require.Len(t, indices, s.Len(), "rank %d", rank)
		for _, idx := range indices {
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, 3)
		}
	}
}

func TestDistributedSampler_SetEpochReshuffles(t *testing.T) {
	s, err := NewDistributedSampler(100, 1, 0, true, 42)
	require.NoError(t, err)

	s.SetEpoch(0)
	epoch0 := s.Indices()
	again := s.Indices()
	assert.Equal(t, epoch0, again, "same epoch must produce the same order")

	s.SetEpoch(1)
	epoch1 := s.Indices()
	assert.NotEqual(t, epoch0, epoch1, "different epochs should reshuffle")
	assert.ElementsMatch(t, epoch0, epoch1, "reshuffling must not drop indices")
}

func TestDistributedSampler_RanksAgreeOnShuffle(t *testing.T) {
	// Both ranks derive the same permutation for a given epoch, so their
	// shards are disjoint even when shuffled.
	s0, err := NewDistributedSampler(20, 2, 0, true, 7)
	require.NoError(t, err)
	s1, err := NewDistributedSampler(20, 2, 1, true, 7)
	require.NoError(t, err)
	s0.SetEpoch(3)
	s1.SetEpoch(3)

	seen := make(map[int]bool)
	for _, idx := range s0.Indices() {
		seen[idx] = true
	}
	for _, idx := range s1.Indices() {
		assert.False(t, seen[idx], "index %d appears on both ranks", idx)
	}
}

func TestNewDistributedSampler_Validation(t *testing.T) {
	_, err := NewDistributedSampler(10, 0, 0, false, 0)
	assert.Error(t, err)

	_, err = NewDistributedSampler(10, 2, 2, false, 0)
	assert.Error(t, err)
}

func TestDataLoader_Batches(t *testing.T) {
	loader, err := NewDataLoader(makeDataset(10), 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, loader.NumBatches())

	it := loader.Iter()
	var sizes []int
	var targets []float64
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		sizes = append(sizes, len(batch))
		for _, s := range batch {
			targets = append(targets, s.Target)
		}
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, targets)
}

func TestDataLoader_FreshIteratorPerPass(t *testing.T) {
	loader, err := NewDataLoader(makeDataset(4), 2, nil)
	require.NoError(t, err)

	it := loader.Iter()
	for {
		if _, ok := it.Next(); !ok {
			break
		}
	}

	// An exhausted iterator stays exhausted; a new pass starts fresh.
	_, ok := it.Next()
	assert.False(t, ok)
	batch, ok := loader.Iter().Next()
	require.True(t, ok)
	assert.Len(t, batch, 2)
}
