// Package width implements the width algebra of the connectivity model:
// a bit width is either a resolved integer or a symbolic parameter
// expression that is evaluated lazily against a parameter environment.
package width

import (
	"fmt"
	"strconv"
)

// Width is a sum type: Resolved(n) or Symbolic(expr, n). n is the
// evaluated integer value; for a Symbolic width it is 0 until Evaluate
// has run at least once.
type Width struct {
	symbolic bool
	expr     string
	n        int
}

// Resolved builds a concrete, already-known width.
func Resolved(n int) Width {
	return Width{n: n}
}

// Symbolic builds a width carried as a parameter expression, evaluated
// to 0 until Evaluate runs.
func Symbolic(expr string) Width {
	return Width{symbolic: true, expr: expr}
}

// IsSymbolic reports whether w carries an unevaluated (or preserved)
// textual expression.
func (w Width) IsSymbolic() bool {
	return w.symbolic
}

// Expr returns the textual expression of a Symbolic width, or "" for a
// Resolved one.
func (w Width) Expr() string {
	return w.expr
}

// N returns the current integer value: the literal for Resolved, or the
// last-evaluated value for Symbolic (0 if never evaluated).
func (w Width) N() int {
	return w.n
}

// Add implements spec.md §4.A: Resolved+Resolved stays Resolved; any
// Symbolic operand yields a Symbolic carrying the textual sum.
func Add(a, b Width) Width {
	if !a.symbolic && !b.symbolic {
		return Resolved(a.n + b.n)
	}
	return Symbolic(fmt.Sprintf("%s + %s", a.text(), b.text()))
}

// Sub implements spec.md §4.A: natural-number carrier. When both
// operands are Resolved, the result saturates at 0 instead of
// underflowing; a negative result is reported through the returned
// *Underflow (nil when there is none) for the caller to log, since silent
// saturation hides an upstream bug.
func Sub(a, b Width) (Width, *Underflow) {
	if !a.symbolic && !b.symbolic {
		if a.n < b.n {
			return Resolved(0), &Underflow{Minuend: a.n, Subtrahend: b.n}
		}
		return Resolved(a.n - b.n), nil
	}
	return Symbolic(fmt.Sprintf("%s - %s", a.text(), b.text())), nil
}

// Underflow records a natural-number subtraction that would have gone
// negative; spec.md §4.A treats this as a warning, not a hard failure.
type Underflow struct {
	Minuend    int
	Subtrahend int
}

func (u *Underflow) Error() string {
	return fmt.Sprintf("width underflow: %d - %d", u.Minuend, u.Subtrahend)
}

func (w Width) text() string {
	if w.symbolic {
		return w.expr
	}
	return strconv.Itoa(w.n)
}

// String renders a Width for HDL output: Resolved prints its integer,
// Symbolic prints its original expression verbatim so parameterized
// port declarations survive round-tripping.
func (w Width) String() string {
	if w.symbolic {
		return w.expr
	}
	return strconv.Itoa(w.n)
}

// BracketRange renders the inside of a "[hi:0]" bit-range declaration:
// for a Resolved width this computes the concrete top bit n-1 (an
// 8-bit Resolved width renders "7:0", not the literal text "8-1:0");
// a Symbolic width preserves its expression verbatim as "expr-1:0" so
// parameterized declarations keep their original form, the same
// symbolic-preservation spec.md §4.A describes for String().
func (w Width) BracketRange() string {
	if w.symbolic {
		return fmt.Sprintf("%s-1:0", w.expr)
	}
	return fmt.Sprintf("%d:0", w.n-1)
}

// Evaluate resolves a Symbolic width's textual expression against a
// parameter environment and caches the integer result. Resolved widths
// are returned unchanged (identity).
func Evaluate(w Width, params map[string]int) (Width, error) {
	if !w.symbolic {
		return w, nil
	}
	n, err := evaluateExpr(w.expr, params)
	if err != nil {
		return w, err
	}
	w.n = n
	return w, nil
}
