package hdl

import "testing"

func TestParameterResolveLiteral(t *testing.T) {
	p := Parameter{Name: "W", Value: LiteralValue(8)}
	if got := p.Value.Resolve(nil); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}

func TestParameterResolveReferenceChain(t *testing.T) {
	params := []Parameter{
		{Name: "W", Value: LiteralValue(8)},
		{Name: "K", Value: ReferenceValue("W")},
	}
	if got := params[1].Value.Resolve(params); got != 8 {
		t.Fatalf("expected K to resolve to 8, got %d", got)
	}
}

func TestParameterResolveMissingReferenceIsZero(t *testing.T) {
	v := ReferenceValue("NOPE")
	if got := v.Resolve(nil); got != 0 {
		t.Fatalf("expected 0 for unresolved reference, got %d", got)
	}
}

func TestEnvironmentResolvesAll(t *testing.T) {
	params := []Parameter{
		{Name: "W", Value: LiteralValue(8)},
		{Name: "K", Value: ReferenceValue("W")},
	}
	env := Environment(params)
	if env["W"] != 8 || env["K"] != 8 {
		t.Fatalf("expected both W and K to resolve to 8, got %+v", env)
	}
}

func TestFindParameter(t *testing.T) {
	params := []Parameter{{Name: "W", Value: LiteralValue(8)}}
	v, ok := FindParameter(params, "W")
	if !ok || v != 8 {
		t.Fatalf("expected (8, true), got (%d, %v)", v, ok)
	}
	if _, ok := FindParameter(params, "NOPE"); ok {
		t.Fatalf("expected false for missing parameter")
	}
}
