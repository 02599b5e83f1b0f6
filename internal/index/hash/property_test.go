// Licensed under the MIT License. See LICENSE file in the project root for details.

package hash

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/kianostad/kindex/internal/indextest"
)

func TestPropertyInsertSearchMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := New[string, string](WithNumShards(8))
		defer idx.Close()
		indextest.CheckInsertSearchAgainstModel[string, string](
			t, idx,
			rapid.StringMatching(`[a-e]`),
			rapid.StringMatching(`[a-e]`),
		)
	})
}

func TestPropertyAbsentKeySearchesEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := New[string, string]()
		defer idx.Close()
		indextest.CheckAbsentKeySearchesEmpty[string, string](t, idx, rapid.String())
	})
}
