// Package split partitions datasets into disjoint train and test subsets.
package split

import (
	"math"
	"math/rand"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// Split assigns every row index of a dataset to exactly one side.
type Split struct {
	Train []int
	Test  []int
}

// Len returns the number of rows covered by the split.
func (s Split) Len() int {
	return len(s.Train) + len(s.Test)
}

// NewRand returns a deterministic source for the given seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// TestSize returns the number of test rows for n rows: ceil(testFraction*n)
// clamped to [1, n-1] so neither side is empty.
func TestSize(n int, testFraction float64) int {
	// 1e-9 keeps products like 0.33*100 from rounding up past 33
	k := int(math.Ceil(testFraction*float64(n) - 1e-9))
	return min(max(k, 1), n-1)
}

// SplitTrainTest shuffles the indices 0..n-1 with rng and takes the first
// TestSize(n, testFraction) of them as the test side. The same seed always
// gives the same partition. Both sides are returned in shuffled order.
func SplitTrainTest(n int, testFraction float64, rng *rand.Rand) (Split, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return Split{}, types.Configuration("test fraction must be in (0,1), got %g", testFraction)
	}
	if n < 2 {
		return Split{}, types.Configuration("need at least 2 rows to split, got %d", n)
	}
	if rng == nil {
		return Split{}, types.Configuration("nil random source")
	}

	perm := rng.Perm(n)
	nTest := TestSize(n, testFraction)
	return Split{
		Test:  perm[:nTest:nTest],
		Train: perm[nTest:],
	}, nil
}

// Take returns items at idx, in idx order. It applies a Split side to any
// slice parallel to the split rows.
func Take[T any](items []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
