// Package generics holds small generic helpers over slices and maps.
package generics

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// SliceMap returns a new slice with fn applied to each element of in.
func SliceMap[In, Out any](in []In, fn func(e In) Out) []Out {
	out := make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return out
}

// SortedKeys iterates over the keys of m in ascending order.
func SortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) iter.Seq[K] {
	return slices.Values(slices.Sorted(maps.Keys(m)))
}

// SortedKeysAndValues iterates over the entries of m in ascending order of the keys.
// The keys are collected upfront, so changes to m during the iteration are only seen for the values.
func SortedKeysAndValues[M ~map[K]V, K cmp.Ordered, V any](m M) iter.Seq2[K, V] {
	keys := slices.Sorted(maps.Keys(m))
	return func(yield func(K, V) bool) {
		for _, key := range keys {
			if !yield(key, m[key]) {
				return
			}
		}
	}
}
