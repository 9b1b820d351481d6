// Package combination enumerates fixed-size subsets of an ordered set.
package combination

import (
	"fmt"
	"iter"
	"math/big"
)

// Iterator yields every k-element subset of items exactly once, in
// lexicographic order of item indices. It is not restartable.
type Iterator[T any] struct {
	items   []T
	k       int
	idx     []int
	started bool
	done    bool
}

// New creates an iterator over the k-subsets of items. k must satisfy
// 1 <= k <= len(items).
func New[T any](k int, items []T) (*Iterator[T], error) {
	if k < 1 || k > len(items) {
		return nil, fmt.Errorf("combination size %d out of range [1, %d]", k, len(items))
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return &Iterator[T]{items: items, k: k, idx: idx}, nil
}

// Next advances to the next subset. Returns false when the sequence is exhausted.
func (it *Iterator[T]) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		return true
	}

	n := len(it.items)
	// Rightmost index that can still move forward
	i := it.k - 1
	for i >= 0 && it.idx[i] == n-it.k+i {
		i--
	}
	if i < 0 {
		it.done = true
		return false
	}
	it.idx[i]++
	for j := i + 1; j < it.k; j++ {
		it.idx[j] = it.idx[j-1] + 1
	}
	return true
}

// Indices returns a copy of the current subset's item indices.
func (it *Iterator[T]) Indices() []int {
	return append([]int(nil), it.idx...)
}

// Value returns the current subset as a fresh slice.
func (it *Iterator[T]) Value() []T {
	out := make([]T, it.k)
	for i, j := range it.idx {
		out[i] = it.items[j]
	}
	return out
}

// Seq returns the k-subsets of items as a range-over-func sequence. An
// out-of-range k yields nothing.
func Seq[T any](k int, items []T) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		it, err := New(k, items)
		if err != nil {
			return
		}
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Binomial returns C(n, k), or zero when k is outside [0, n].
func Binomial(n, k int) *big.Int {
	if k < 0 || k > n {
		return big.NewInt(0)
	}
	return new(big.Int).Binomial(int64(n), int64(k))
}
