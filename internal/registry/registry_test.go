package registry

import (
	"errors"
	"testing"

	"github.com/lenslan/topgen/internal/hdlerr"
)

func TestWidthOfUnknownWire(t *testing.T) {
	r := New()
	_, err := r.WidthOf("nope")
	var unknown *hdlerr.UnknownWire
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownWire, got %v", err)
	}
}

func TestDriverLoadWidth(t *testing.T) {
	r := New()
	r.RegisterDriver("b", BitRange{0, 4})
	r.RegisterLoad("b", BitRange{0, 2})

	w, err := r.WidthOf("b")
	if err != nil {
		t.Fatalf("WidthOf: %v", err)
	}
	if w != 4 {
		t.Fatalf("expected width 4, got %d", w)
	}
}

func TestMultiFanoutLoadIsLegal(t *testing.T) {
	r := New()
	r.RegisterDriver("n", BitRange{0, 4})
	r.RegisterLoad("n", BitRange{0, 4})
	r.RegisterLoad("n", BitRange{0, 4})

	errs := r.Check()
	if len(errs) != 0 {
		t.Fatalf("expected no errors for legal multi-fanout, got %v", errs)
	}
}

func TestMultiDrivenIsReportedAtCheck(t *testing.T) {
	r := New()
	r.RegisterDriver("n", BitRange{0, 4})
	r.RegisterDriver("n", BitRange{0, 4})

	errs := r.Check()
	count := 0
	for _, err := range errs {
		var md *hdlerr.MultiDriven
		if errors.As(err, &md) {
			count++
		}
	}
	if count != 4 {
		t.Fatalf("expected 4 multi-driven bit errors, got %d (errs=%v)", count, errs)
	}
}

func TestUndrivenReportedAsError(t *testing.T) {
	r := New()
	r.RegisterLoad("x", BitRange{0, 3})

	errs := r.Check()
	count := 0
	for _, err := range errs {
		var ud *hdlerr.Undriven
		if errors.As(err, &ud) {
			count++
		}
	}
	if count != 3 {
		t.Fatalf("expected 3 undriven errors, got %d", count)
	}
}

func TestUnloadedIsWarningNotError(t *testing.T) {
	r := New()
	r.RegisterDriver("y", BitRange{0, 2})

	errs := r.Check()
	if len(errs) != 0 {
		t.Fatalf("expected Unloaded to be a warning only, got errors %v", errs)
	}
}

func TestListInternalWiresExcludesPortTagged(t *testing.T) {
	r := New()
	r.RegisterDriver("internal_wire", BitRange{0, 8})
	r.RegisterDriver("internal_wire", BitRange{0, 8}) // repeated range: multi-driven bits, still an internal wire
	r.RegisterPortDriver("top_port", BitRange{0, 4})

	wires := r.ListInternalWires()
	if len(wires) != 1 || wires[0].Name != "internal_wire" {
		t.Fatalf("expected only internal_wire, got %+v", wires)
	}
}

func TestListInternalWiresLexicographicOrder(t *testing.T) {
	r := New()
	r.RegisterDriver("zeta", BitRange{0, 1})
	r.RegisterDriver("alpha", BitRange{0, 1})
	r.RegisterDriver("mid", BitRange{0, 1})

	wires := r.ListInternalWires()
	var names []string
	for _, w := range wires {
		names = append(names, w.Name)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("expected lexicographic order %v, got %v", want, names)
		}
	}
}

func TestListUnbalanced(t *testing.T) {
	r := New()
	r.RegisterLoad("needs_driver", BitRange{0, 4})
	r.RegisterDriver("needs_load", BitRange{0, 2})

	ub := r.ListUnbalanced()
	sawInput, sawOutput := false, false
	for _, u := range ub {
		switch {
		case u.Name == "needs_driver" && u.Direction == DirectionInput:
			sawInput = true
		case u.Name == "needs_load" && u.Direction == DirectionOutput:
			sawOutput = true
		}
	}
	if !sawInput || !sawOutput {
		t.Fatalf("expected both input and output candidates, got %+v", ub)
	}
}

func TestClearResetsRegistry(t *testing.T) {
	r := New()
	r.RegisterDriver("n", BitRange{0, 4})
	r.Clear()
	if _, err := r.WidthOf("n"); err == nil {
		t.Fatalf("expected UnknownWire after Clear")
	}
}
