package dqn

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// ReplayBuffer holds the last capacity elements added, overwriting the oldest ones when full.
type ReplayBuffer[T any] struct {
	capacity int
	data     []T
	next     int
}

// NewReplayBuffer creates an empty buffer with the given capacity.
func NewReplayBuffer[T any](capacity int) *ReplayBuffer[T] {
	return &ReplayBuffer[T]{
		capacity: capacity,
		data:     make([]T, 0, capacity),
	}
}

// Add an element, replacing the oldest if the buffer is full.
func (b *ReplayBuffer[T]) Add(e T) {
	if len(b.data) < b.capacity {
		b.data = append(b.data, e)
	} else {
		b.data[b.next] = e
	}
	b.next = (b.next + 1) % b.capacity
}

// Len returns the number of elements in the buffer.
func (b *ReplayBuffer[T]) Len() int { return len(b.data) }

// Capacity of the buffer.
func (b *ReplayBuffer[T]) Capacity() int { return b.capacity }

// Sample n elements uniformly, without replacement.
func (b *ReplayBuffer[T]) Sample(n int, src rand.Source) ([]T, error) {
	if n > len(b.data) {
		return nil, errors.Errorf("replay buffer has %d elements, can't sample %d", len(b.data), n)
	}
	if n == 0 {
		return nil, nil
	}
	indices := make([]int, n)
	sampleuv.WithoutReplacement(indices, len(b.data), src)
	samples := make([]T, n)
	for ii, idx := range indices {
		samples[ii] = b.data[idx]
	}
	return samples, nil
}
