package hdl

import "fmt"

// Wrap layers zero or more preprocessor guard names around a value of
// type T (spec.md §4.F). The zero value wraps nothing. Equality and
// hashing of the wrapped value must ignore the guard layer entirely;
// callers compare the Inner value directly rather than the Wrap.
type Wrap[T any] struct {
	Inner T
	// guards lists the guard names from outermost to innermost.
	guards []string
}

// Raw wraps v with no guards.
func Raw[T any](v T) Wrap[T] {
	return Wrap[T]{Inner: v}
}

// WithGuards wraps v in the given guard names, outermost first, exactly
// as listed.
func WithGuards[T any](v T, guards []string) Wrap[T] {
	return Wrap[T]{Inner: v, guards: append([]string(nil), guards...)}
}

// Guard returns a copy of w with name added as the new innermost guard
// (the guard closest to the wrapped value).
func (w Wrap[T]) Guard(name string) Wrap[T] {
	guards := append(append([]string(nil), w.guards...), name)
	return Wrap[T]{Inner: w.Inner, guards: guards}
}

// Guards returns the guard names, outermost first.
func (w Wrap[T]) Guards() []string {
	return append([]string(nil), w.guards...)
}

// WrapAs copies other's guard layer onto w's inner value, used when a
// port or module crosses from one side of the bridge to the other and
// must inherit its counterpart's conditional-compilation wrapping.
func (w Wrap[T]) WrapAs(other Wrap[T]) Wrap[T] {
	return Wrap[T]{Inner: w.Inner, guards: append([]string(nil), other.guards...)}
}

// Render nests render(w.Inner)'s lines inside one `ifdef`/`endif` pair
// per guard, outermost guard producing the outermost pair.
func (w Wrap[T]) Render(render func(T) []string) []string {
	lines := render(w.Inner)
	for i := len(w.guards) - 1; i >= 0; i-- {
		name := w.guards[i]
		wrapped := make([]string, 0, len(lines)+2)
		wrapped = append(wrapped, fmt.Sprintf("`ifdef %s", name))
		wrapped = append(wrapped, lines...)
		wrapped = append(wrapped, fmt.Sprintf("`endif  // %s", name))
		lines = wrapped
	}
	return lines
}
