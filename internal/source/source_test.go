package source

import (
	"testing"

	"github.com/lenslan/topgen/internal/hdl"
)

// the regex fallback is what every test below exercises directly (via the
// zero-value Adapter, which carries no grammar) since a loaded grammar's
// node-type strings can't be asserted against without linking the real
// cgo binding.
func parseFallback(t *testing.T, src string) *hdl.Module {
	t.Helper()
	a := &Adapter{}
	mods, err := a.Parse("test.v", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(mods) != 1 {
		t.Fatalf("want 1 module, got %d", len(mods))
	}
	return mods[0]
}

func TestParseAnsiModule(t *testing.T) {
	src := `
module adder #(
    parameter W = 8,
    parameter K = W + 4
) (
    input  wire             clk,
    input  wire [W-1:0]     a,
    input  wire [K-1:0]     b,
    output wire [W-1:0]     sum
);
endmodule
`
	m := parseFallback(t, src)
	if m.Name != "adder" {
		t.Fatalf("module name = %q", m.Name)
	}
	if len(m.Parameters) != 2 {
		t.Fatalf("want 2 parameters, got %d", len(m.Parameters))
	}
	if got := m.Parameters[0].Value.Resolve(m.Parameters); got != 8 {
		t.Errorf("W = %d, want 8", got)
	}
	if got := m.Parameters[1].Value.Resolve(m.Parameters); got != 12 {
		t.Errorf("K = %d, want 12", got)
	}

	if len(m.Ports) != 4 {
		t.Fatalf("want 4 ports, got %d", len(m.Ports))
	}
	byName := map[string]*hdl.Port{}
	for _, p := range m.Ports {
		byName[p.Inner.Name] = p.Inner
	}

	clk := byName["clk"]
	if clk == nil || clk.Dir != hdl.DirIn || clk.Width.N() != 1 {
		t.Errorf("clk = %+v", clk)
	}

	a := byName["a"]
	if a == nil || a.Dir != hdl.DirIn || a.Width.String() != "W" {
		t.Errorf("a width = %+v", a)
	}

	b := byName["b"]
	if b == nil || b.Dir != hdl.DirIn || b.Width.String() != "K" {
		t.Errorf("b width = %+v", b)
	}

	sum := byName["sum"]
	if sum == nil || sum.Dir != hdl.DirOut || sum.Width.String() != "W" {
		t.Errorf("sum width = %+v", sum)
	}
}

func TestParseAnsiModuleDirectionCarriesForward(t *testing.T) {
	src := `
module buf8 (
    input  wire [7:0] a, b,
    output wire [7:0] y
);
endmodule
`
	m := parseFallback(t, src)
	var names []string
	for _, p := range m.Ports {
		names = append(names, p.Inner.Name)
		if p.Inner.Width.N() != 8 {
			t.Errorf("port %s width = %d, want 8", p.Inner.Name, p.Inner.Width.N())
		}
	}
	want := []string{"a", "b", "y"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("port[%d] = %q, want %q", i, names[i], n)
		}
	}
	if m.Ports[0].Inner.Dir != hdl.DirIn || m.Ports[1].Inner.Dir != hdl.DirIn {
		t.Error("carried-forward input direction not applied to second name")
	}
	if m.Ports[2].Inner.Dir != hdl.DirOut {
		t.Error("output direction not applied")
	}
}

func TestParseNonAnsiModule(t *testing.T) {
	src := `
module adder(clk, a, b, sum);
    parameter W = 8;
    input wire clk;
    input wire [W-1:0] a;
    input wire [W-1:0] b;
    output wire [W-1:0] sum;
endmodule
`
	m := parseFallback(t, src)
	if len(m.Parameters) != 1 || m.Parameters[0].Value.Resolve(m.Parameters) != 8 {
		t.Fatalf("parameters = %+v, want [W=8]", m.Parameters)
	}
	if len(m.Ports) != 4 {
		t.Fatalf("want 4 ports, got %d", len(m.Ports))
	}
	names := []string{"clk", "a", "b", "sum"}
	for i, n := range names {
		if m.Ports[i].Inner.Name != n {
			t.Errorf("port[%d] = %q, want %q", i, m.Ports[i].Inner.Name, n)
		}
	}
	if m.Ports[1].Inner.Width.String() != "W" {
		t.Errorf("a width = %q, want W", m.Ports[1].Inner.Width.String())
	}
}

func TestParseSizedLiteralParameter(t *testing.T) {
	src := `
module lit (
    output wire [7:0] y
);
    parameter DEFAULT = 8'hFF;
endmodule
`
	m := parseFallback(t, src)
	if len(m.Parameters) != 1 {
		t.Fatalf("want 1 parameter, got %d", len(m.Parameters))
	}
	if got := m.Parameters[0].Value.Resolve(m.Parameters); got != 255 {
		t.Errorf("DEFAULT = %d, want 255 (8'hFF)", got)
	}
}

func TestLowerWidthBracketsSimplifiesMinusOne(t *testing.T) {
	w := lowerWidthBrackets("[K-1:0]")
	if !w.IsSymbolic() || w.String() != "K" {
		t.Errorf("got %+v, want Symbolic(K)", w)
	}
}

func TestLowerWidthBracketsPlainRange(t *testing.T) {
	w := lowerWidthBrackets("[7:0]")
	if w.IsSymbolic() || w.N() != 8 {
		t.Errorf("got %+v, want Resolved(8)", w)
	}
}

func TestLowerWidthBracketsNonZeroLowBound(t *testing.T) {
	w := lowerWidthBrackets("[15:8]")
	if !w.IsSymbolic() {
		t.Errorf("got %+v, want a symbolic generic expression", w)
	}
}

func TestSplitTopLevelIgnoresNestedCommas(t *testing.T) {
	got := splitTopLevel("parameter W = 8, parameter K = foo(1, 2)")
	if len(got) != 2 {
		t.Fatalf("want 2 entries, got %d: %v", len(got), got)
	}
}

func TestParseNoModuleReturnsEmpty(t *testing.T) {
	a := &Adapter{}
	mods, err := a.Parse("empty.v", []byte("// just a comment\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(mods) != 0 {
		t.Fatalf("want 0 modules, got %d", len(mods))
	}
}
