// Package infer implements the width-inference engine of spec.md §4.C:
// it collects equations of the form "sum of undefined widths = port
// width deficit" and solves them with fraction-free Bareiss-style
// Gaussian elimination.
package infer

import (
	"fmt"

	"github.com/lenslan/topgen/internal/hdlerr"
)

// Collector gathers the name→index map and equation list during port
// health-checking, then solves once at a module's final_check time
// (spec.md §9: the collect/solve handshake is two-phase and must not be
// inlined in a way that lets a port read its fragments mid-phase).
type Collector struct {
	index     map[string]int
	names     []string
	equations []equation
	solution  []int
	solved    bool
}

type equation struct {
	indices []int
	rhs     int
}

// New returns an empty collector, ready to accept equations.
func New() *Collector {
	return &Collector{index: make(map[string]int)}
}

// IndexOf returns the insertion-order index for name, allocating one if
// this is the first time name has been seen.
func (c *Collector) IndexOf(name string) int {
	if idx, ok := c.index[name]; ok {
		return idx
	}
	idx := len(c.names)
	c.index[name] = idx
	c.names = append(c.names, name)
	return idx
}

// AddEquation records "sum of the widths at these unknown indices ==
// rhs", coming from one port's undefined fragments and width deficit.
func (c *Collector) AddEquation(indices []int, rhs int) {
	c.equations = append(c.equations, equation{indices: append([]int(nil), indices...), rhs: rhs})
}

// Pending reports whether any unknowns have been collected but not yet
// solved.
func (c *Collector) Pending() bool {
	return len(c.names) > 0 && !c.solved
}

// Solve runs fraction-free Bareiss elimination on the collected system
// and, on success, writes every unknown's width into the shared
// solution vector. Calling Solve again after a successful solve is a
// no-op (spec.md §8 property 5).
func (c *Collector) Solve() error {
	if c.solved {
		return nil
	}
	if len(c.names) == 0 {
		c.solved = true
		return nil
	}

	n := len(c.names)
	a := make([][]int, len(c.equations))
	for i, eq := range c.equations {
		row := make([]int, n+1)
		for _, idx := range eq.indices {
			row[idx]++
		}
		row[n] = eq.rhs
		a[i] = row
	}

	solution, err := solveAugmented(a, n)
	if err != nil {
		if unsolv, ok := err.(*hdlerr.Unsolvable); ok {
			unsolv.Unknowns = c.Unknowns()
		}
		return err
	}

	c.solution = solution
	c.solved = true
	return nil
}

// WidthOf returns the solved width for name. Solve must have succeeded
// first.
func (c *Collector) WidthOf(name string) (int, bool) {
	idx, ok := c.index[name]
	if !ok || !c.solved || c.solution == nil {
		return 0, false
	}
	return c.solution[idx], true
}

// Unknowns returns the collected unknown names in insertion order, used
// for Unsolvable's diagnostic.
func (c *Collector) Unknowns() []string {
	return append([]string(nil), c.names...)
}

// Reset clears the collector for the next top-module traversal.
func (c *Collector) Reset() {
	*c = Collector{index: make(map[string]int)}
}

// solveAugmented runs Bareiss-style fraction-free Gaussian elimination
// on the nEqs×(nVars+1) augmented matrix a, returning the integer
// solution vector indexed by variable.
func solveAugmented(a [][]int, nVars int) ([]int, error) {
	nEqs := len(a)
	prevPivot := 1

	limit := nVars
	if nEqs < limit {
		limit = nEqs
	}

	for k := 0; k < limit; k++ {
		pivotRow := -1
		for p := k; p < nEqs; p++ {
			if a[p][k] != 0 {
				pivotRow = p
				break
			}
		}
		if pivotRow == -1 {
			return nil, unsolvable(a, nVars, "no pivot found")
		}
		a[k], a[pivotRow] = a[pivotRow], a[k]

		pivot := a[k][k]
		for i := k + 1; i < nEqs; i++ {
			for j := k + 1; j <= nVars; j++ {
				numerator := a[i][j]*pivot - a[i][k]*a[k][j]
				if numerator%prevPivot != 0 {
					return nil, unsolvable(a, nVars, "non-exact fraction-free elimination step")
				}
				a[i][j] = numerator / prevPivot
			}
			a[i][k] = 0
		}
		prevPivot = pivot
	}

	if nEqs < nVars {
		return nil, unsolvable(a, nVars, "under-determined system")
	}

	for i := nVars; i < nEqs; i++ {
		if a[i][nVars] != 0 {
			return nil, unsolvable(a, nVars, "inconsistent equation with all-zero variable row")
		}
	}

	x := make([]int, nVars)
	for i := nVars - 1; i >= 0; i-- {
		sum := 0
		for j := i + 1; j < nVars; j++ {
			sum += a[i][j] * x[j]
		}
		rhs := a[i][nVars] - sum
		divisor := a[i][i]
		if divisor == 0 || rhs%divisor != 0 {
			return nil, unsolvable(a, nVars, "no integer solution")
		}
		x[i] = rhs / divisor
		if x[i] < 0 {
			return nil, unsolvable(a, nVars, "negative width in solution")
		}
	}
	return x, nil
}

func unsolvable(a [][]int, nVars int, reason string) error {
	_ = a
	_ = nVars
	return &hdlerr.Unsolvable{Reason: reason}
}

// FastPathWidth resolves a port with exactly one undefined fragment
// locally, without entering the solver (spec.md §4.C "fast path").
func FastPathWidth(declaredWidth, knownWidth int) (int, error) {
	deficit := declaredWidth - knownWidth
	if deficit < 0 {
		return 0, fmt.Errorf("port over-connected: declared %d, known fragments already %d", declaredWidth, knownWidth)
	}
	return deficit, nil
}
