package utils_test

import (
	"testing"

	"github.com/kestrel-lang/kestrelc/pkg/utils"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()
	om.Set("c", 3)
	om.Set("a", 1)
	om.Set("b", 2)

	got := om.Entries()
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestOrderedMapOverwriteKeepsPosition(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()
	om.Set("first", 1)
	om.Set("second", 2)
	om.Set("first", 100) // overwrite, should not move to the end

	got := om.Entries()
	want := []int{100, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestOrderedMapGetMissing(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()
	om.Set("present", 7)

	if _, ok := om.Get("absent"); ok {
		t.Errorf("expected 'absent' to be missing")
	}
	v, ok := om.Get("present")
	if !ok || v != 7 {
		t.Errorf("expected (7, true), got (%d, %v)", v, ok)
	}
}

func TestOrderedMapZeroValueUsable(t *testing.T) {
	var om utils.OrderedMap[string, int]
	om.Set("a", 1) // zero-value map must lazily init its index
	if got, ok := om.Get("a"); !ok || got != 1 {
		t.Errorf("expected (1, true) from zero-value OrderedMap, got (%d, %v)", got, ok)
	}
	if om.Size() != 1 {
		t.Errorf("expected size 1, got %d", om.Size())
	}
}

func TestOrderedMapIter(t *testing.T) {
	om := utils.NewOrderedMapFromList([]utils.MapEntry[string, int]{
		{Key: "x", Value: 10},
		{Key: "y", Value: 20},
	})

	var keys []string
	var values []int
	om.Iter()(func(k string, v int) bool {
		keys = append(keys, k)
		values = append(values, v)
		return true
	})

	if len(keys) != 2 || keys[0] != "x" || keys[1] != "y" {
		t.Errorf("unexpected key order: %v", keys)
	}
	if len(values) != 2 || values[0] != 10 || values[1] != 20 {
		t.Errorf("unexpected value order: %v", values)
	}
}

func TestOrderedMapIterStopsEarly(t *testing.T) {
	om := utils.NewOrderedMapFromList([]utils.MapEntry[string, int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
		{Key: "c", Value: 3},
	})

	var seen int
	om.Iter()(func(k string, v int) bool {
		seen++
		return seen < 2 // stop after the second yield
	})
	if seen != 2 {
		t.Errorf("expected iteration to stop after 2 yields, stopped after %d", seen)
	}
}
