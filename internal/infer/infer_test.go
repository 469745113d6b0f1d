package infer

import (
	"testing"

	"github.com/lenslan/topgen/internal/hdlerr"
)

func TestSolveSingleUnknown(t *testing.T) {
	c := New()
	x := c.IndexOf("x")
	c.AddEquation([]int{x}, 8)

	if err := c.Solve(); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	got, ok := c.WidthOf("x")
	if !ok || got != 8 {
		t.Fatalf("expected x=8, got %d, ok=%v", got, ok)
	}
}

func TestSolveTwoByTwoFullRank(t *testing.T) {
	// x + y = 10, x = 4  =>  x=4, y=6
	c := New()
	x := c.IndexOf("x")
	y := c.IndexOf("y")
	c.AddEquation([]int{x, y}, 10)
	c.AddEquation([]int{x}, 4)

	if err := c.Solve(); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	gotX, _ := c.WidthOf("x")
	gotY, _ := c.WidthOf("y")
	if gotX != 4 || gotY != 6 {
		t.Fatalf("expected x=4,y=6, got x=%d,y=%d", gotX, gotY)
	}
}

func TestSolveNegativeSolutionIsUnsolvable(t *testing.T) {
	// x + y = 10, x + 2y = 6 -- full rank, but its only solution has
	// y = -4, and a negative width makes the system Unsolvable.
	c := New()
	x := c.IndexOf("x")
	y := c.IndexOf("y")
	c.AddEquation([]int{x, y}, 10)
	c.AddEquation([]int{x, y, y}, 6)

	err := c.Solve()
	if err == nil {
		t.Fatalf("expected Unsolvable error")
	}
	var uns *hdlerr.Unsolvable
	if !asUnsolvable(err, &uns) {
		t.Fatalf("expected *hdlerr.Unsolvable, got %T: %v", err, err)
	}
	if len(uns.Unknowns) != 2 {
		t.Fatalf("expected Unsolvable to carry both unknown names, got %v", uns.Unknowns)
	}
}

func TestSolveSingleEquationTwoUnknownsIsUnsolvable(t *testing.T) {
	c := New()
	x := c.IndexOf("x")
	y := c.IndexOf("y")
	c.AddEquation([]int{x, y}, 10)

	if err := c.Solve(); err == nil {
		t.Fatalf("expected Unsolvable for under-determined system")
	}
}

func TestSolveIsIdempotent(t *testing.T) {
	c := New()
	x := c.IndexOf("x")
	c.AddEquation([]int{x}, 5)

	if err := c.Solve(); err != nil {
		t.Fatalf("first Solve: %v", err)
	}
	first, _ := c.WidthOf("x")

	if err := c.Solve(); err != nil {
		t.Fatalf("second Solve: %v", err)
	}
	second, _ := c.WidthOf("x")

	if first != second {
		t.Fatalf("expected idempotent solve, got %d then %d", first, second)
	}
}

func TestSolveEmptyCollectorIsNoop(t *testing.T) {
	c := New()
	if err := c.Solve(); err != nil {
		t.Fatalf("expected nil error for empty collector, got %v", err)
	}
}

func TestFastPathWidth(t *testing.T) {
	got, err := FastPathWidth(8, 3)
	if err != nil {
		t.Fatalf("FastPathWidth: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestFastPathWidthOverConnected(t *testing.T) {
	_, err := FastPathWidth(4, 6)
	if err == nil {
		t.Fatalf("expected an error for over-connected port")
	}
}

func TestUnknownsPreservesInsertionOrder(t *testing.T) {
	c := New()
	c.IndexOf("b")
	c.IndexOf("a")
	c.IndexOf("c")

	got := c.Unknowns()
	want := []string{"b", "a", "c"}
	for i, n := range want {
		if got[i] != n {
			t.Fatalf("expected insertion order %v, got %v", want, got)
		}
	}
}

func TestResetClearsState(t *testing.T) {
	c := New()
	x := c.IndexOf("x")
	c.AddEquation([]int{x}, 5)
	if err := c.Solve(); err != nil {
		t.Fatalf("Solve: %v", err)
	}

	c.Reset()
	if c.Pending() {
		t.Fatalf("expected no pending state after Reset")
	}
	if _, ok := c.WidthOf("x"); ok {
		t.Fatalf("expected WidthOf to fail after Reset")
	}
}

func asUnsolvable(err error, out **hdlerr.Unsolvable) bool {
	if u, ok := err.(*hdlerr.Unsolvable); ok {
		*out = u
		return true
	}
	return false
}
