// Licensed under the MIT License. See LICENSE file in the project root for details.

package kindex

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewHashIndex(t *testing.T) {
	Convey("Given a hash index built through the facade", t, func() {
		h := NewHashIndex[string, string](WithNumShards(16), WithExpectedEntries(100))
		defer h.Close()

		Convey("Insert and Search behave as documented", func() {
			So(h.Insert("a", "1"), ShouldBeTrue)
			So(h.Search("a"), ShouldContainKey, "1")
			So(h.Remove("a"), ShouldBeTrue)
			So(h.Search("a"), ShouldBeEmpty)
			So(h.Metrics().Inserts, ShouldEqual, 1)
		})
	})
}

func TestNewSkipListIndex(t *testing.T) {
	Convey("Given a skip list index built through the facade", t, func() {
		s := NewSkipListIndex[int, string](WithMaxLevel(8))
		defer s.Close()

		Convey("Insert and Search behave as documented", func() {
			So(s.Insert(1, "a"), ShouldBeTrue)
			So(s.Search(1), ShouldContainKey, "a")
			So(s.Remove(1), ShouldBeTrue)
			So(s.Search(1), ShouldBeEmpty)
			So(s.Metrics().Inserts, ShouldEqual, 1)
		})
	})
}

func TestNewBPlusTreeIndex(t *testing.T) {
	Convey("Given a B+ tree index built through the facade", t, func() {
		b := NewBPlusTreeIndex[int, string](WithOrder(8))
		defer b.Close()

		Convey("Insert, Search, and RangeSearch behave as documented", func() {
			for i := 0; i < 20; i++ {
				So(b.Insert(i, "v"), ShouldBeTrue)
			}
			So(b.Search(5), ShouldContainKey, "v")

			got := b.RangeSearch(5, 10)
			So(len(got), ShouldEqual, 5)

			So(b.RemoveValue(5, "v"), ShouldBeTrue)
			So(b.Search(5), ShouldBeEmpty)
			So(b.Metrics().Splits, ShouldBeGreaterThan, 0)
		})
	})
}
