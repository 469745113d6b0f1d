package hdl

import (
	"github.com/lenslan/topgen/internal/infer"
	"github.com/lenslan/topgen/internal/registry"
)

// Context bundles the two pieces of process-wide state spec.md §5
// describes: the wire registry and the undefined-width collector. Both
// are re-initialized once at the start of every top-module traversal.
type Context struct {
	Reg   *registry.Registry
	Infer *infer.Collector

	// InoutDual controls whether an inout port/fragment registers as
	// both driver and load (spec.md §9 REDESIGN FLAGS). Defaults to
	// true in NewContext; NewContextWithConfig carries the project's
	// configured value instead.
	InoutDual bool
}

// NewContext returns a fresh context with an empty registry and
// collector, and the default inout dual-registration behavior.
func NewContext() *Context {
	return &Context{Reg: registry.New(), Infer: infer.New(), InoutDual: true}
}

// NewContextWithConfig returns a fresh context whose InoutDual flag
// follows cfg.InoutDualRegister().
func NewContextWithConfig(inoutDual bool) *Context {
	return &Context{Reg: registry.New(), Infer: infer.New(), InoutDual: inoutDual}
}

// Reset clears both pieces of state for the next top-module traversal.
func (c *Context) Reset() {
	c.Reg.Clear()
	c.Infer.Reset()
}
