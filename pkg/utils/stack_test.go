package utils_test

import (
	"testing"

	"github.com/kestrel-lang/kestrelc/pkg/utils"
)

func TestStackPushPopOrder(t *testing.T) {
	stack := utils.NewStack[int]()
	stack.Push(1)
	stack.Push(2)
	stack.Push(3)

	if stack.Count() != 3 {
		t.Fatalf("expected count 3, got %d", stack.Count())
	}

	for _, want := range []int{3, 2, 1} {
		got, err := stack.Pop()
		if err != nil {
			t.Fatalf("unexpected error popping: %v", err)
		}
		if got != want {
			t.Errorf("expected to pop %d, got %d", want, got)
		}
	}
}

func TestStackTopDoesNotRemove(t *testing.T) {
	stack := utils.NewStack[string]("a", "b")
	top, err := stack.Top()
	if err != nil || top != "b" {
		t.Fatalf("expected top 'b', got %q (err %v)", top, err)
	}
	if stack.Count() != 2 {
		t.Errorf("Top() should not remove, expected count 2, got %d", stack.Count())
	}
}

func TestStackEmptyErrors(t *testing.T) {
	stack := utils.NewStack[int]()
	if _, err := stack.Top(); err == nil {
		t.Errorf("expected error from Top() on empty stack")
	}
	if _, err := stack.Pop(); err == nil {
		t.Errorf("expected error from Pop() on empty stack")
	}
}

func TestStackIteratorIsTopToBottom(t *testing.T) {
	stack := utils.NewStack[int](1, 2, 3)
	var order []int
	stack.Iterator()(func(v int) bool {
		order = append(order, v)
		return true
	})
	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], order[i])
		}
	}
}

func TestStackSliceIsBottomToTopCopy(t *testing.T) {
	stack := utils.NewStack[int](1, 2, 3)
	out := stack.Slice()
	want := []int{1, 2, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], out[i])
		}
	}

	out[0] = 99 // mutating the returned slice must not affect the stack
	if again := stack.Slice(); again[0] != 1 {
		t.Errorf("Slice() should return a defensive copy")
	}
}
