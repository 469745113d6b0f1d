// Package registry implements the process-scoped wire registry of
// spec.md §4.B: a catalogue of named signals with per-bit driver and
// load sets, a port-tag flag, and multi-driver bookkeeping.
package registry

import (
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"
	log "github.com/sirupsen/logrus"

	"github.com/lenslan/topgen/internal/hdlerr"
)

// BitRange is a half-open bit range [Lo, Hi).
type BitRange struct {
	Lo, Hi int
}

type entry struct {
	driver          *bitset.BitSet
	load            *bitset.BitSet
	multiDrivenBits *bitset.BitSet
	portTagged      bool
}

func newEntry() *entry {
	return &entry{
		driver:          &bitset.BitSet{},
		load:            &bitset.BitSet{},
		multiDrivenBits: &bitset.BitSet{},
	}
}

// Registry is the process-wide wire catalogue described in spec.md §4.B
// and §5: one mutex, one entry map, cleared at the start of every
// top-module traversal.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) getOrCreate(name string) *entry {
	e, ok := r.entries[name]
	if !ok {
		e = newEntry()
		r.entries[name] = e
	}
	return e
}

// RegisterDriver adds rng's bit indices to name's driver set. A bit
// added a second time is recorded in multiDrivenBits rather than
// reported immediately (spec.md §4.B: "not reported until check").
func (r *Registry) RegisterDriver(name string, rng BitRange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getOrCreate(name)
	r.addDriverBits(e, rng)
}

// RegisterLoad adds rng's bit indices to name's load set. Adding the
// same load bit twice is legal fan-out, not an error.
func (r *Registry) RegisterLoad(name string, rng BitRange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getOrCreate(name)
	for i := rng.Lo; i < rng.Hi; i++ {
		e.load.Set(uint(i))
	}
}

// RegisterPortDriver is RegisterDriver, but also marks the entry as
// port-tagged: it must not later be declared as an internal `wire`.
func (r *Registry) RegisterPortDriver(name string, rng BitRange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getOrCreate(name)
	e.portTagged = true
	r.addDriverBits(e, rng)
}

// RegisterPortLoad is RegisterLoad, but also marks the entry as
// port-tagged.
func (r *Registry) RegisterPortLoad(name string, rng BitRange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getOrCreate(name)
	e.portTagged = true
	for i := rng.Lo; i < rng.Hi; i++ {
		e.load.Set(uint(i))
	}
}

func (r *Registry) addDriverBits(e *entry, rng BitRange) {
	for i := rng.Lo; i < rng.Hi; i++ {
		bit := uint(i)
		if e.driver.Test(bit) {
			e.multiDrivenBits.Set(bit)
			continue
		}
		e.driver.Set(bit)
	}
}

// WidthOf returns 1 + max(max-driver-bit, max-load-bit) for name. Fails
// UnknownWire if name was never registered.
func (r *Registry) WidthOf(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return 0, &hdlerr.UnknownWire{Name: name}
	}
	return highestBit(e.driver, e.load) + 1, nil
}

func highestBit(sets ...*bitset.BitSet) int {
	max := -1
	for _, s := range sets {
		if s.Count() == 0 {
			continue
		}
		if top, ok := s.NextSetBit(0); ok {
			for {
				if int(top) > max {
					max = int(top)
				}
				next, found := s.NextSetBit(top + 1)
				if !found {
					break
				}
				top = next
			}
		}
	}
	return max
}

// Check runs spec.md §4.B's per-entry health check: load∖driver becomes
// Undriven (error), driver∖load becomes Unloaded (warning), and every
// recorded multiDrivenBits becomes MultiDriven (error). All problems
// across every wire are returned rather than stopping at the first.
func (r *Registry) Check() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.sortedNames()
	var errs []error
	for _, name := range names {
		e := r.entries[name]
		for bit := uint(0); bit < e.multiDrivenBits.Len(); bit++ {
			if e.multiDrivenBits.Test(bit) {
				err := &hdlerr.MultiDriven{Name: name, Bit: int(bit)}
				log.WithField("wire", name).WithField("bit", bit).Error(err)
				errs = append(errs, err)
			}
		}
		undriven := e.load.Difference(e.driver)
		for bit := uint(0); bit < undriven.Len(); bit++ {
			if undriven.Test(bit) {
				err := &hdlerr.Undriven{Name: name, Bit: int(bit)}
				log.WithField("wire", name).WithField("bit", bit).Error(err)
				errs = append(errs, err)
			}
		}
		unloaded := e.driver.Difference(e.load)
		for bit := uint(0); bit < unloaded.Len(); bit++ {
			if unloaded.Test(bit) {
				err := &hdlerr.Unloaded{Name: name, Bit: int(bit)}
				log.WithField("wire", name).WithField("bit", bit).Warn(err)
			}
		}
	}
	return errs
}

// InternalWire is one row of ListInternalWires: a non-port-tagged entry
// that must become a `wire` declaration in emitted source.
type InternalWire struct {
	Name  string
	Width int
}

// ListInternalWires returns every entry whose port-tag is false, with
// its computed width, in lexicographic name order so generated source
// diffs stay minimal (spec.md §5).
func (r *Registry) ListInternalWires() []InternalWire {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.sortedNames()
	var out []InternalWire
	for _, name := range names {
		e := r.entries[name]
		if e.portTagged {
			continue
		}
		out = append(out, InternalWire{Name: name, Width: highestBit(e.driver, e.load) + 1})
	}
	return out
}

// Direction is a leftover-signal's inferred outer-shell role.
type Direction int

const (
	// DirectionInput marks a leftover signal that needs an outside
	// driver (an Undriven wire).
	DirectionInput Direction = iota
	// DirectionOutput marks a leftover signal whose driver has nowhere
	// to go inside the module (an Unloaded wire).
	DirectionOutput
)

// Unbalanced is one row of ListUnbalanced.
type Unbalanced struct {
	Direction Direction
	Width     int
	Name      string
}

// ListUnbalanced returns, for every entry, the undriven/unloaded
// candidates that source→sheet synthesis turns into outer-shell ports:
// an Undriven bit becomes a candidate input port, an Unloaded bit
// becomes a candidate output port.
func (r *Registry) ListUnbalanced() []Unbalanced {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.sortedNames()
	var out []Unbalanced
	for _, name := range names {
		e := r.entries[name]
		undriven := e.load.Difference(e.driver)
		if undriven.Count() > 0 {
			out = append(out, Unbalanced{Direction: DirectionInput, Width: int(undriven.Count()), Name: name})
		}
		unloaded := e.driver.Difference(e.load)
		if unloaded.Count() > 0 {
			out = append(out, Unbalanced{Direction: DirectionOutput, Width: int(unloaded.Count()), Name: name})
		}
	}
	return out
}

// Clear drops all entries. Must be called once at the start of every
// top-module traversal (spec.md §5).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
