// Licensed under the MIT License. See LICENSE file in the project root for details.

package hash

import (
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestIndexInsertSearch(t *testing.T) {
	Convey("Given a fresh index", t, func() {
		idx := New[string, string]()
		defer idx.Close()

		Convey("Searching an absent key returns empty", func() {
			So(idx.Search("missing"), ShouldBeEmpty)
		})

		Convey("Inserting a new value under a new key returns true", func() {
			So(idx.Insert("k1", "v1"), ShouldBeTrue)

			Convey("Search returns the inserted value", func() {
				got := idx.Search("k1")
				So(got, ShouldContainKey, "v1")
				So(len(got), ShouldEqual, 1)
			})

			Convey("Inserting the same value again returns false", func() {
				So(idx.Insert("k1", "v1"), ShouldBeFalse)
			})

			Convey("Inserting a second value under the same key returns true", func() {
				So(idx.Insert("k1", "v2"), ShouldBeTrue)
				So(len(idx.Search("k1")), ShouldEqual, 2)
			})
		})
	})
}

func TestIndexRemove(t *testing.T) {
	Convey("Given an index with one key holding two values", t, func() {
		idx := New[string, string]()
		defer idx.Close()
		idx.Insert("k1", "v1")
		idx.Insert("k1", "v2")

		Convey("RemoveValue for an absent value returns false", func() {
			So(idx.RemoveValue("k1", "v3"), ShouldBeFalse)
		})

		Convey("RemoveValue for a present value returns true and leaves the other", func() {
			So(idx.RemoveValue("k1", "v1"), ShouldBeTrue)
			got := idx.Search("k1")
			So(len(got), ShouldEqual, 1)
			So(got, ShouldContainKey, "v2")
		})

		Convey("RemoveValue of the last value erases the key entirely", func() {
			idx.RemoveValue("k1", "v1")
			idx.RemoveValue("k1", "v2")
			So(idx.Search("k1"), ShouldBeEmpty)
		})

		Convey("Remove erases the key regardless of how many values it holds", func() {
			So(idx.Remove("k1"), ShouldBeTrue)
			So(idx.Search("k1"), ShouldBeEmpty)
			So(idx.Remove("k1"), ShouldBeFalse)
		})
	})
}

func TestIndexConstructionOptions(t *testing.T) {
	Convey("A zero shard count panics", t, func() {
		So(func() { New[string, string](WithNumShards(0)) }, ShouldPanic)
	})

	Convey("A negative shard count panics", t, func() {
		So(func() { New[string, string](WithNumShards(-1)) }, ShouldPanic)
	})

	Convey("A custom shard count and sizing hint still behaves correctly", t, func() {
		idx := New[string, int](WithNumShards(4), WithExpectedEntries(1000))
		defer idx.Close()
		idx.Insert("a", 1)
		So(idx.Search("a"), ShouldContainKey, 1)
	})
}

func TestIndexConcurrentAccess(t *testing.T) {
	Convey("Given an index under concurrent writers across many keys", t, func() {
		idx := New[string, int]()
		defer idx.Close()
		var wg sync.WaitGroup
		const keys = 50
		const valuesPerKey = 20

		for k := 0; k < keys; k++ {
			for v := 0; v < valuesPerKey; v++ {
				wg.Add(1)
				go func(k, v int) {
					defer wg.Done()
					idx.Insert(fmt.Sprintf("key-%d", k), v)
				}(k, v)
			}
		}
		wg.Wait()

		Convey("Every key ends up with every value", func() {
			for k := 0; k < keys; k++ {
				So(len(idx.Search(fmt.Sprintf("key-%d", k))), ShouldEqual, valuesPerKey)
			}
		})
	})
}
