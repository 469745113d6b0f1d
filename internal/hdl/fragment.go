package hdl

import "fmt"

// FragmentKind discriminates the signal-fragment sum type of spec.md §3.
type FragmentKind int

const (
	// FragNone is the placeholder occupying index 0 of every port's
	// signal list, so signal indices align with human-visible ordering.
	FragNone FragmentKind = iota
	// FragSliced is a bit range of a named, width-known signal.
	FragSliced
	// FragUndefined is a named signal referenced without a width.
	FragUndefined
	// FragLiteral is a sized numeric constant.
	FragLiteral
)

// Fragment is one element of a port's signals list.
type Fragment struct {
	Kind FragmentKind

	// Name holds the wire name for FragSliced and FragUndefined.
	Name string
	// Lo, Hi bound a half-open bit range for FragSliced.
	Lo, Hi int

	// LiteralWidth and LiteralValue hold a FragLiteral's size and value.
	LiteralWidth int
	LiteralValue uint64
}

// None returns the placeholder fragment.
func None() Fragment { return Fragment{Kind: FragNone} }

// Sliced returns a fragment referencing lo..hi of wire name.
func Sliced(name string, lo, hi int) Fragment {
	return Fragment{Kind: FragSliced, Name: name, Lo: lo, Hi: hi}
}

// Undefined returns a fragment referencing name without a known width.
func Undefined(name string) Fragment {
	return Fragment{Kind: FragUndefined, Name: name}
}

// Literal returns a sized numeric-constant fragment.
func Literal(value uint64, bits int) Fragment {
	return Fragment{Kind: FragLiteral, LiteralWidth: bits, LiteralValue: value}
}

// Width returns the fragment's bit width, or 0 for FragUndefined and
// FragNone (neither contributes to the known-width sum).
func (f Fragment) Width() int {
	switch f.Kind {
	case FragSliced:
		return f.Hi - f.Lo
	case FragLiteral:
		return f.LiteralWidth
	default:
		return 0
	}
}

// IsUndefined reports whether f is a FragUndefined fragment.
func (f Fragment) IsUndefined() bool {
	return f.Kind == FragUndefined
}

// IsNone reports whether f is the FragNone placeholder.
func (f Fragment) IsNone() bool {
	return f.Kind == FragNone
}

// String renders a fragment the way it appears inside a brace
// concatenation or a sheet's signal-name cell.
func (f Fragment) String() string {
	switch f.Kind {
	case FragNone:
		return ""
	case FragSliced:
		if f.Hi-f.Lo == 1 {
			return fmt.Sprintf("%s[%d]", f.Name, f.Lo)
		}
		return fmt.Sprintf("%s[%d:%d]", f.Name, f.Hi-1, f.Lo)
	case FragUndefined:
		return f.Name
	case FragLiteral:
		return fmt.Sprintf("%d'd%d", f.LiteralWidth, f.LiteralValue)
	default:
		return ""
	}
}
