// Licensed under the MIT License. See LICENSE file in the project root for details.

package skiplist

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestIndexInsertSearch(t *testing.T) {
	Convey("Given a fresh index", t, func() {
		idx := New[int, string]()
		defer idx.Close()

		Convey("Searching an absent key returns empty", func() {
			So(idx.Search(42), ShouldBeEmpty)
		})

		Convey("Inserting a new value under a new key returns true", func() {
			So(idx.Insert(42, "v1"), ShouldBeTrue)

			Convey("Search returns the inserted value", func() {
				got := idx.Search(42)
				So(got, ShouldContainKey, "v1")
				So(len(got), ShouldEqual, 1)
			})

			Convey("Inserting the same value again returns false", func() {
				So(idx.Insert(42, "v1"), ShouldBeFalse)
			})

			Convey("Inserting a second value under the same key returns true", func() {
				So(idx.Insert(42, "v2"), ShouldBeTrue)
				So(len(idx.Search(42)), ShouldEqual, 2)
			})
		})
	})
}

func TestIndexManyKeysStayOrdered(t *testing.T) {
	Convey("Given many keys inserted out of order", t, func() {
		idx := New[int, int]()
		defer idx.Close()
		keys := []int{50, 10, 90, 30, 70, 20, 80, 40, 60, 0}
		for _, k := range keys {
			idx.Insert(k, k*10)
		}

		Convey("Every key is individually searchable", func() {
			for _, k := range keys {
				got := idx.Search(k)
				So(got, ShouldContainKey, k*10)
			}
		})
	})
}

func TestIndexRemove(t *testing.T) {
	Convey("Given an index with one key holding two values", t, func() {
		idx := New[int, string]()
		defer idx.Close()
		idx.Insert(1, "v1")
		idx.Insert(1, "v2")

		Convey("RemoveValue for an absent value returns false", func() {
			So(idx.RemoveValue(1, "v3"), ShouldBeFalse)
		})

		Convey("RemoveValue for a present value returns true and leaves the other", func() {
			So(idx.RemoveValue(1, "v1"), ShouldBeTrue)
			got := idx.Search(1)
			So(len(got), ShouldEqual, 1)
			So(got, ShouldContainKey, "v2")
		})

		Convey("RemoveValue of the last value removes the key entirely", func() {
			idx.RemoveValue(1, "v1")
			idx.RemoveValue(1, "v2")
			So(idx.Search(1), ShouldBeEmpty)
		})

		Convey("Remove erases the key regardless of how many values it holds", func() {
			So(idx.Remove(1), ShouldBeTrue)
			So(idx.Search(1), ShouldBeEmpty)
			So(idx.Remove(1), ShouldBeFalse)
		})

		Convey("Removing a key does not disturb a neighboring key", func() {
			idx.Insert(2, "v3")
			idx.Remove(1)
			So(idx.Search(2), ShouldContainKey, "v3")
		})
	})
}

func TestIndexConstructionOptions(t *testing.T) {
	Convey("A zero max level panics", t, func() {
		So(func() { New[int, string](WithMaxLevel(0)) }, ShouldPanic)
	})

	Convey("A custom max level still behaves correctly", t, func() {
		idx := New[int, string](WithMaxLevel(4))
		defer idx.Close()
		idx.Insert(1, "a")
		So(idx.Search(1), ShouldContainKey, "a")
	})
}

func TestIndexConcurrentInsertAndRemove(t *testing.T) {
	Convey("Given an index under concurrent inserts across many keys", t, func() {
		idx := New[int, int]()
		defer idx.Close()
		var wg sync.WaitGroup
		const n = 300

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				idx.Insert(k, k)
			}(i)
		}
		wg.Wait()

		Convey("Every key is present", func() {
			for i := 0; i < n; i++ {
				So(idx.Search(i), ShouldContainKey, i)
			}
		})

		Convey("Concurrently removing half of them leaves the rest intact", func() {
			var rwg sync.WaitGroup
			for i := 0; i < n; i += 2 {
				rwg.Add(1)
				go func(k int) {
					defer rwg.Done()
					idx.Remove(k)
				}(i)
			}
			rwg.Wait()

			for i := 0; i < n; i++ {
				if i%2 == 0 {
					So(idx.Search(i), ShouldBeEmpty)
				} else {
					So(idx.Search(i), ShouldContainKey, i)
				}
			}
		})
	})
}

func TestIndexReclamationLifecycle(t *testing.T) {
	Convey("Given an index with background reclamation running", t, func() {
		idx := New[int, int]()
		defer idx.Close()
		idx.StartReclamation(1)
		defer idx.StopReclamation()

		for i := 0; i < 50; i++ {
			idx.Insert(i, i)
		}
		for i := 0; i < 50; i += 2 {
			idx.Remove(i)
		}

		Convey("Surviving keys remain searchable", func() {
			for i := 1; i < 50; i += 2 {
				So(idx.Search(i), ShouldContainKey, i)
			}
		})
	})
}
