package hdl

import (
	"strings"
	"testing"

	"github.com/lenslan/topgen/internal/registry"
	"github.com/lenslan/topgen/internal/width"
)

func TestSetDefaultInstanceName(t *testing.T) {
	m := NewModule("adder")
	m.SetDefaultInstanceName("")
	if m.InstanceName != "u_adder" {
		t.Fatalf("expected u_adder, got %q", m.InstanceName)
	}

	m2 := NewModule("adder")
	m2.InstanceName = "my_adder"
	m2.SetDefaultInstanceName("")
	if m2.InstanceName != "my_adder" {
		t.Fatalf("expected existing instance name preserved, got %q", m2.InstanceName)
	}

	m3 := NewModule("adder")
	m3.SetDefaultInstanceName("inst_")
	if m3.InstanceName != "inst_adder" {
		t.Fatalf("expected configured prefix honored, got %q", m3.InstanceName)
	}
}

func TestSetDefaultPortWiresConnectsAndChecks(t *testing.T) {
	ctx := NewContext()
	m := NewModule("leaf")
	m.AddPort(NewPort(DirIn, "clk", width.Resolved(1)))
	m.AddPort(NewPort(DirOut, "q", width.Resolved(4)))

	if err := m.SetDefaultPortWires(ctx); err != nil {
		t.Fatalf("SetDefaultPortWires: %v", err)
	}
	for _, p := range m.Ports {
		sig := p.Inner.GetSignalString()
		if !strings.HasPrefix(sig, p.Inner.Name) {
			t.Fatalf("expected port %s to self-connect, got %q", p.Inner.Name, sig)
		}
	}
}

func TestFindInstanceByModuleName(t *testing.T) {
	top := NewModule("top")
	child := NewModule("leaf")
	top.AddInstance(child)

	if got := top.FindInstanceByModuleName("leaf"); got != child {
		t.Fatalf("expected to find leaf instance")
	}
	if got := top.FindInstanceByModuleName("nope"); got != nil {
		t.Fatalf("expected nil for missing instance, got %v", got)
	}
}

func TestDiffPortsWith(t *testing.T) {
	older := NewModule("m")
	older.AddPort(NewPort(DirIn, "a", width.Resolved(1)))

	newer := NewModule("m")
	newer.AddPort(NewPort(DirIn, "a", width.Resolved(1)))
	newer.AddPort(NewPort(DirOut, "b", width.Resolved(2)))

	added := older.DiffPortsWith(newer)
	if len(added) != 1 || added[0].Inner.Name != "b" {
		t.Fatalf("expected only port b as added, got %+v", added)
	}

	same := older.SamePortsWith(newer)
	if len(same) != 1 || same[0].Inner.Name != "a" {
		t.Fatalf("expected port a as same, got %+v", same)
	}
}

func TestDiffInstancesWith(t *testing.T) {
	older := NewModule("top")
	older.AddInstance(NewModule("leafA"))

	newer := NewModule("top")
	newer.AddInstance(NewModule("leafA"))
	newer.AddInstance(NewModule("leafB"))

	added := older.DiffInstancesWith(newer)
	if len(added) != 1 || added[0].Inner.Name != "leafB" {
		t.Fatalf("expected only leafB as added, got %+v", added)
	}
}

func TestUpdateLiteralPortsPropagatesParams(t *testing.T) {
	m := NewModule("m")
	m.AddPort(NewPort(DirIn, "d", width.Symbolic("K - 1")))
	env := map[string]int{"K": 12}

	if err := m.UpdateLiteralPorts(env); err != nil {
		t.Fatalf("UpdateLiteralPorts: %v", err)
	}
	if m.Ports[0].Inner.Width.N() != 11 {
		t.Fatalf("expected resolved width 11, got %d", m.Ports[0].Inner.Width.N())
	}
	if m.Ports[0].Inner.Width.String() != "K - 1" {
		t.Fatalf("expected rendered width to preserve the expression, got %q", m.Ports[0].Inner.Width.String())
	}
}

func TestFinalCheckResolvesPortsAndRunsRegistryCheck(t *testing.T) {
	ctx := NewContext()
	top := NewModule("top")
	leaf := NewModule("leaf")
	leaf.AddPort(NewPort(DirIn, "x", width.Resolved(4)))
	top.AddInstance(leaf)

	// The instance's input port self-connects with no outside driver:
	// FinalCheck's registry check must surface this as Undriven, one
	// error per bit, rather than crashing or silently dropping it.
	leaf.Ports[0].Inner.ConnectSelf()

	errs := top.FinalCheck(ctx)
	if len(errs) != 4 {
		t.Fatalf("expected 4 Undriven errors for x[0:4), got %d: %v", len(errs), errs)
	}
}

func TestToInstTextElidesEmptyParameterBlock(t *testing.T) {
	m := NewModule("leaf")
	m.InstanceName = "u_leaf"
	m.AddPort(NewPort(DirIn, "clk", width.Resolved(1)))

	lines := m.ToInstText()
	joined := strings.Join(lines, "\n")
	if strings.Contains(joined, "#(") {
		t.Fatalf("expected no parameter block, got:\n%s", joined)
	}
	if !strings.HasPrefix(lines[0], "leaf u_leaf (") {
		t.Fatalf("expected header line, got %q", lines[0])
	}
}

func TestToInstTextIncludesParameterBlock(t *testing.T) {
	m := NewModule("leaf")
	m.InstanceName = "u_leaf"
	m.AddParameterList([]Parameter{{Name: "W", Value: LiteralValue(8)}})
	m.AddPort(NewPort(DirIn, "clk", width.Resolved(1)))

	lines := m.ToInstText()
	if !strings.Contains(lines[0], "#(.W(8))") {
		t.Fatalf("expected parameter block in header, got %q", lines[0])
	}
}

func TestToModuleTextIncludesWireDeclsAndEndmodule(t *testing.T) {
	ctx := NewContext()
	m := NewModule("top")
	p := NewPort(DirOut, "o", width.Resolved(4))
	m.AddPort(p)
	ctx.Reg.RegisterDriver("internal_wire", registry.BitRange{Lo: 0, Hi: 4})

	lines := m.ToModuleText(ctx)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "wire [3:0] internal_wire;") {
		t.Fatalf("expected internal wire declaration, got:\n%s", joined)
	}
	if lines[len(lines)-1] != "endmodule" {
		t.Fatalf("expected endmodule as last line, got %q", lines[len(lines)-1])
	}
}
