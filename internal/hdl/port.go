package hdl

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/lenslan/topgen/internal/hdlerr"
	"github.com/lenslan/topgen/internal/infer"
	"github.com/lenslan/topgen/internal/registry"
	"github.com/lenslan/topgen/internal/width"
)

// Direction is a port's signal flow relative to its owning module.
type Direction int

const (
	DirUnknown Direction = iota
	DirIn
	DirOut
	DirInOut
)

// String renders the Verilog port-direction keyword.
func (d Direction) String() string {
	switch d {
	case DirIn:
		return "input"
	case DirOut:
		return "output"
	case DirInOut:
		return "inout"
	default:
		return "unknown"
	}
}

// Port is a directional, widthed, ordered list of signal fragments
// (spec.md §3, §4.D). Two ports are equal iff direction, name, and
// width match; the signals list and bookkeeping fields are excluded
// from equality deliberately.
type Port struct {
	Dir     Direction
	Name    string
	Width   width.Width
	Info    string
	Signals []Fragment

	undefinedCount int
	// undefSlotMap maps an undefined fragment's wire name to its index
	// in Signals, so the solver's result can be written back in place.
	undefSlotMap map[string]int

	healthChecked   bool
	undefRegistered bool
}

// NewPort builds a port with the None placeholder occupying signal
// index 0, matching every port's initial state.
func NewPort(dir Direction, name string, w width.Width) *Port {
	return &Port{
		Dir:          dir,
		Name:         name,
		Width:        w,
		Signals:      []Fragment{None()},
		undefSlotMap: make(map[string]int),
	}
}

// Equal implements the direction/name/width equality spec.md §4.D
// requires for set-difference operations between port lists.
func (p *Port) Equal(other *Port) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Dir == other.Dir && p.Name == other.Name && p.Width.N() == other.Width.N()
}

// key renders the (direction, name, width) equality triple as a string,
// used by the generic diffRows idiom to key port set-differences.
func (p *Port) key() string {
	return fmt.Sprintf("%d|%s|%d", p.Dir, p.Name, p.Width.N())
}

// AddSliced appends a Sliced fragment and registers its bits in ctx's
// registry as a driver (output) or a load (input/inout/unknown).
func (p *Port) AddSliced(ctx *Context, name string, lo, hi int) {
	rng := registry.BitRange{Lo: lo, Hi: hi}
	reg := ctx.Reg
	if p.Dir == DirOut {
		reg.RegisterDriver(name, rng)
	} else {
		reg.RegisterLoad(name, rng)
	}
	if p.Dir == DirInOut && ctx.InoutDual {
		// REDESIGN FLAGS: an inout port both drives and loads every bit
		// it touches, since either side of the bridge may source it.
		reg.RegisterDriver(name, rng)
	}
	p.Signals = append(p.Signals, Sliced(name, lo, hi))
}

// AddUndefined appends an Undefined fragment and tracks its slot for
// later resolution.
func (p *Port) AddUndefined(name string) {
	p.undefSlotMap[name] = len(p.Signals)
	p.Signals = append(p.Signals, Undefined(name))
	p.undefinedCount++
}

// AddLiteral appends a sized numeric-constant fragment.
func (p *Port) AddLiteral(value uint64, bits int) {
	p.Signals = append(p.Signals, Literal(value, bits))
}

// ConnectSelf is the default top-level wiring: a port with no explicit
// signals connects to a same-named, as-yet-unsized wire.
func (p *Port) ConnectSelf() {
	p.AddUndefined(p.Name)
}

// RegisterAsWire registers the port's full range into ctx's registry as
// a port-tagged driver (output) or load (input/inout/unknown), used
// when no explicit signals were added and the port itself defines the
// outer wire.
func (p *Port) RegisterAsWire(ctx *Context) {
	if len(p.Signals) > 1 {
		return
	}
	reg := ctx.Reg
	rng := registry.BitRange{Lo: 0, Hi: p.Width.N()}
	if p.Dir == DirOut {
		reg.RegisterPortDriver(p.Name, rng)
	} else {
		reg.RegisterPortLoad(p.Name, rng)
	}
	if p.Dir == DirInOut && ctx.InoutDual {
		reg.RegisterPortDriver(p.Name, rng)
	}
}

// UpdateLiteralWidth re-evaluates the port's width against params.
// Sliced fragment ranges are plain integers and are left as they are. A
// width expression that does not evaluate falls back to 0 and is logged
// as a warning; the returned error is always nil.
func (p *Port) UpdateLiteralWidth(params map[string]int) error {
	evaluated, err := width.Evaluate(p.Width, params)
	if err != nil {
		log.WithField("port", p.Name).Warn(err)
		evaluated = width.Symbolic(p.Width.Expr())
	}
	p.Width = evaluated
	return nil
}

// ConnectedWidth sums the known widths of every fragment (Sliced and
// Literal contribute; Undefined and None contribute 0).
func (p *Port) ConnectedWidth() int {
	sum := 0
	for _, f := range p.Signals {
		sum += f.Width()
	}
	return sum
}

// CheckHealth implements spec.md §4.D's idempotent health check and the
// two-phase undefined-width collector handshake. ctx may be nil only
// when undefinedCount == 0.
func (p *Port) CheckHealth(ctx *Context) error {
	switch p.undefinedCount {
	case 0:
		return p.checkFullyConnected()
	case 1:
		return p.resolveSingleUndefined(ctx)
	default:
		return p.collectOrRefreshUndefined(ctx)
	}
}

func (p *Port) checkFullyConnected() error {
	sum := p.ConnectedWidth()
	declared := p.Width.N()
	switch {
	case sum < declared:
		log.WithField("port", p.Name).Warn(&hdlerr.UnderConnected{Port: p.Name, Declared: declared, Actual: sum})
	case sum > declared:
		log.WithField("port", p.Name).Warn(&hdlerr.OverConnected{Port: p.Name, Declared: declared, Actual: sum})
	}
	p.healthChecked = true
	return nil
}

func (p *Port) resolveSingleUndefined(ctx *Context) error {
	known := p.ConnectedWidth()
	deficit, err := infer.FastPathWidth(p.Width.N(), known)
	if err != nil {
		log.WithField("port", p.Name).Warn(&hdlerr.OverConnected{Port: p.Name, Declared: p.Width.N(), Actual: known})
		p.healthChecked = true
		return nil
	}
	if deficit <= 0 {
		log.WithField("port", p.Name).Warn(&hdlerr.OverConnected{Port: p.Name, Declared: p.Width.N(), Actual: known})
		p.healthChecked = true
		return nil
	}
	for name, idx := range p.undefSlotMap {
		if ctx != nil {
			p.registerResolved(ctx, name, 0, deficit)
		}
		p.Signals[idx] = Sliced(name, 0, deficit)
	}
	p.undefSlotMap = make(map[string]int)
	p.undefinedCount = 0
	p.healthChecked = true
	return nil
}

func (p *Port) registerResolved(ctx *Context, name string, lo, hi int) {
	rng := registry.BitRange{Lo: lo, Hi: hi}
	reg := ctx.Reg
	if p.Dir == DirOut {
		reg.RegisterDriver(name, rng)
	} else {
		reg.RegisterLoad(name, rng)
	}
	if p.Dir == DirInOut && ctx.InoutDual {
		reg.RegisterDriver(name, rng)
	}
}

func (p *Port) collectOrRefreshUndefined(ctx *Context) error {
	if ctx == nil {
		return fmt.Errorf("port %s: multiple undefined fragments need an inference context", p.Name)
	}
	if !p.undefRegistered {
		known := p.ConnectedWidth()
		deficit := p.Width.N() - known
		indices := make([]int, 0, len(p.undefSlotMap))
		for name := range p.undefSlotMap {
			indices = append(indices, ctx.Infer.IndexOf(name))
		}
		ctx.Infer.AddEquation(indices, deficit)
		p.undefRegistered = true
		return nil
	}

	for name, idx := range p.undefSlotMap {
		w, ok := ctx.Infer.WidthOf(name)
		if !ok {
			return fmt.Errorf("port %s: unresolved width for %q", p.Name, name)
		}
		p.registerResolved(ctx, name, 0, w)
		p.Signals[idx] = Sliced(name, 0, w)
	}
	p.undefSlotMap = make(map[string]int)
	p.undefinedCount = 0
	p.healthChecked = true
	return nil
}

// GetSignalString renders the port's connection as a concatenation
// `{f0, f1, …}`, a bare fragment when there is exactly one, or empty
// for the sole-None case.
func (p *Port) GetSignalString() string {
	frags := p.nonNoneFragments()
	switch len(frags) {
	case 0:
		return ""
	case 1:
		return frags[0].String()
	default:
		parts := make([]string, len(frags))
		for i, f := range frags {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
}

func (p *Port) nonNoneFragments() []Fragment {
	var out []Fragment
	for _, f := range p.Signals {
		if !f.IsNone() {
			out = append(out, f)
		}
	}
	return out
}

// ToInstBinding renders `.name(signal)` with a trailing comma unless
// isLast.
func (p *Port) ToInstBinding(isLast bool) string {
	line := fmt.Sprintf(".%s(%s)", p.Name, p.GetSignalString())
	if !isLast {
		line += ","
	}
	return line
}

// ToPortDecl renders `direction wire [hi:0] name` (range elided when
// width is 1) with a trailing comma unless isLast.
func (p *Port) ToPortDecl(isLast bool) string {
	var decl string
	if p.Width.N() == 1 {
		decl = fmt.Sprintf("%s wire %s", p.Dir, p.Name)
	} else {
		decl = fmt.Sprintf("%s wire [%s] %s", p.Dir, p.Width.BracketRange(), p.Name)
	}
	if !isLast {
		decl += ","
	}
	return decl
}

// ToAssignLine returns an `assign name = {concat};` line when the port
// has more than one signal fragment, and ok=false otherwise.
func (p *Port) ToAssignLine() (line string, ok bool) {
	frags := p.nonNoneFragments()
	if len(frags) <= 1 {
		return "", false
	}
	return fmt.Sprintf("assign %s = %s;", p.Name, p.GetSignalString()), true
}

// CloneWithWires copies other's direction/name/width AND its signal
// fragments, used when carrying forward existing spreadsheet bindings
// onto a freshly re-parsed port shape.
func CloneWithWires(other *Port) *Port {
	clone := &Port{
		Dir:          other.Dir,
		Name:         other.Name,
		Width:        other.Width,
		Info:         other.Info,
		Signals:      append([]Fragment(nil), other.Signals...),
		undefSlotMap: make(map[string]int),
	}
	for name, idx := range other.undefSlotMap {
		clone.undefSlotMap[name] = idx
	}
	clone.undefinedCount = other.undefinedCount
	return clone
}

// CloneWithoutWires copies only direction/name/width, used when the
// source side discovered a brand-new port with no prior bindings.
func CloneWithoutWires(other *Port) *Port {
	return NewPort(other.Dir, other.Name, other.Width)
}
