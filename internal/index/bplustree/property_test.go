// Licensed under the MIT License. See LICENSE file in the project root for details.

package bplustree

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/kianostad/kindex/internal/indextest"
)

func TestPropertyInsertSearchMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := New[int, string](WithOrder(4))
		defer idx.Close()
		indextest.CheckInsertSearchAgainstModel[int, string](
			t, idx,
			rapid.IntRange(0, 50),
			rapid.StringMatching(`[a-e]`),
		)
	})
}

func TestPropertyAbsentKeySearchesEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := New[int, string]()
		defer idx.Close()
		indextest.CheckAbsentKeySearchesEmpty[int, string](t, idx, rapid.Int())
	})
}

func TestPropertyRangeSearchMatchesSortedModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := New[int, int](WithOrder(4))
		defer idx.Close()
		inserted := make(map[int]struct{})

		n := rapid.IntRange(0, 100).Draw(t, "count")
		for i := 0; i < n; i++ {
			k := rapid.IntRange(0, 200).Draw(t, "key")
			idx.Insert(k, k)
			inserted[k] = struct{}{}
		}

		lo := rapid.IntRange(0, 200).Draw(t, "lo")
		hi := rapid.IntRange(0, 200).Draw(t, "hi")
		if lo >= hi {
			return
		}

		got := idx.RangeSearch(lo, hi)
		for k := range inserted {
			_, inRange := got[k]
			shouldBeInRange := k >= lo && k < hi
			if inRange != shouldBeInRange {
				t.Fatalf("RangeSearch(%d, %d): key %d present=%v, want %v", lo, hi, k, inRange, shouldBeInRange)
			}
		}
	})
}
