// Licensed under the MIT License. See LICENSE file in the project root for details.

package skiplist

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/kianostad/kindex/internal/indextest"
)

func TestPropertyInsertSearchMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := New[int, string]()
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
